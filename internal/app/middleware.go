package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (app *Application) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := app.logger.With("request_id", middleware.GetReqID(r.Context()))

		next.ServeHTTP(w, app.contextSetLogger(r, logger))
	})
}

// requireAuthentication accepts HS256 bearer tokens issued by the identity service and puts
// the token subject into the request context as the user id.
func (app *Application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		authorizationHeader := r.Header.Get("Authorization")
		if authorizationHeader == "" {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		token, found := strings.CutPrefix(authorizationHeader, "Bearer ")
		if !found || token == "" {
			app.invalidAuthenticationTokenResponse(w, r)
			return
		}

		userID, err := app.parseAccessToken(token)
		if err != nil {
			app.contextGetLogger(r).Warn("rejected access token", "error", err)
			app.invalidAuthenticationTokenResponse(w, r)
			return
		}

		r = app.contextSetUserID(r, userID)
		r = app.contextSetLogger(r, app.contextGetLogger(r).With("user_id", userID))

		next.ServeHTTP(w, r)
	})
}

var errMissingSubject = errors.New("token has no subject")

func (app *Application) parseAccessToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) {
			return []byte(app.config.JWT.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", errMissingSubject
	}

	return claims.Subject, nil
}
