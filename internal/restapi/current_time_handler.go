package restapi

import (
	"net/http"

	"linfer.allora.network/internal/models"
)

// currentTimeHandler writes the fixture clock's current time, read in the
// configured timezone.
func (api *RestAPI) currentTimeHandler(w http.ResponseWriter, r *http.Request) {
	loc, err := api.Generator.Params().LoadLocation()
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	timeData := models.NewCurrentTimeModel(api.Generator.Now(), loc)
	api.sendResponse(w, r, models.NewEntryResponse(timeData))
}
