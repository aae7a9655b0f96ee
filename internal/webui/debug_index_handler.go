package webui

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"linfer.allora.network/internal/app"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

// dataTypes lists the views the debug page can dump.
var dataTypes = []string{"params", "config", "inference", "metrics"}

// WebUI serves human-readable dumps of the fixture's state.
type WebUI struct {
	*app.Application
}

type debugData struct {
	Title     string
	Pre       string
	DataTypes []string
}

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	dataStruct := debugData{
		Title:     title,
		Pre:       spew.Sdump(data),
		DataTypes: dataTypes,
	}

	if err := debugTemplate.Execute(w, dataStruct); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	dataType := r.URL.Query().Get("dataType")

	var data interface{}
	var title string

	switch dataType {
	case "params":
		data = webUI.Generator.Params()
		title = "Model - Parameters"
	case "config":
		cfg := webUI.CurrentConfig()
		// Never echo the keys themselves.
		cfg.ApiKeys = make([]string, len(cfg.ApiKeys))
		for i := range cfg.ApiKeys {
			cfg.ApiKeys[i] = "<redacted>"
		}
		data = cfg
		title = "Configuration"
	case "inference":
		inf, err := webUI.Generator.Infer(r.Context())
		if err != nil {
			data = map[string]string{"error": err.Error()}
		} else {
			data = inf
		}
		title = "Model - Sample Inference"
	case "metrics":
		var buf strings.Builder
		if err := webUI.Metrics.WriteText(&buf); err != nil {
			data = map[string]string{"error": err.Error()}
		} else {
			data = buf.String()
		}
		title = "Metrics"
	default:
		data = map[string]string{
			"error": "Please use one of the following: " + strings.Join(dataTypes, ", ") + ".",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}
