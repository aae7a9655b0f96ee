package restapi

import (
	"encoding/json"
	"net/http"

	"linfer.allora.network/internal/models"
)

func (api *RestAPI) sendResponse(w http.ResponseWriter, r *http.Request, response models.ResponseModel) {
	setJSONResponseType(&w)
	if response.Code != 0 && response.Code != http.StatusOK {
		w.WriteHeader(response.Code)
	}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
}

// sendLine writes a single-line body followed by a newline, the way the
// fixture prints it.
func (api *RestAPI) sendLine(w http.ResponseWriter, r *http.Request, status int, contentType, line string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write([]byte(line + "\n")); err != nil {
		api.Logger.Error("failed to write inference line", "error", err, "path", r.URL.Path)
	}
}

func (api *RestAPI) sendNotFound(w http.ResponseWriter, r *http.Request) {
	setJSONResponseType(&w)
	w.WriteHeader(http.StatusNotFound)

	response := models.ResponseModel{
		Code:        http.StatusNotFound,
		CurrentTime: models.ResponseCurrentTime(),
		Text:        "resource not found",
		Version:     models.ResponseVersion,
	}

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		api.Logger.Error("failed to encode not found response", "error", err)
	}
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}
