package view

import (
	"errors"
	"net/http"

	"trazio/internal/models"
	"trazio/internal/router"
)

// Toast is a transient notification shown by the browser.
type Toast struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func successToast(message string) *Toast {
	return &Toast{Kind: "success", Message: message}
}

// Outcome is how a failed action is reported to the browser.
type Outcome struct {
	Status   int    `json:"-"`
	Toast    *Toast `json:"toast,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Failure converts err into a toast. A 401 on an authenticated request
// becomes a redirect to the login page instead.
func Failure(err error) Outcome {
	if models.IsUnauthorized(err) {
		return Outcome{
			Status:   http.StatusUnauthorized,
			Redirect: router.LoginPath,
			Toast:    &Toast{Kind: "error", Message: "Tu sesión expiró, inicia sesión de nuevo"},
		}
	}
	if errors.Is(err, models.ErrCancelled) {
		return Outcome{Status: http.StatusConflict, Toast: &Toast{Kind: "error", Message: "La consulta fue reemplazada, intenta de nuevo"}}
	}
	return Outcome{Status: models.HTTPStatus(err), Toast: &Toast{Kind: "error", Message: models.UserMessage(err)}}
}
