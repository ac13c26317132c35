package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"credit-backend/internal/apperrors"
	"credit-backend/internal/models"
)

type actorKey struct{}

// JWTAuth validates the bearer token and stores the caller in the request
// context. Tokens must carry a numeric user_id claim; role defaults to user.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				unauthorized(w)
				return
			}

			actor, err := parseActor(raw, secret)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseActor(raw, secret string) (models.Actor, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Actor{}, err
	}

	id, err := claimUserID(claims["user_id"])
	if err != nil {
		return models.Actor{}, err
	}
	role, _ := claims["role"].(string)
	return models.Actor{ID: id, Role: models.ParseRole(role)}, nil
}

func claimUserID(v interface{}) (int64, error) {
	var id int64
	switch val := v.(type) {
	case float64:
		id = int64(val)
		if float64(id) != val {
			return 0, fmt.Errorf("user_id %v is not an integer", val)
		}
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, err
		}
		id = n
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, err
		}
		id = n
	default:
		return 0, fmt.Errorf("user_id claim missing")
	}
	if id <= 0 {
		return 0, fmt.Errorf("user_id must be positive")
	}
	return id, nil
}

// GetActor returns the authenticated caller set by JWTAuth.
func GetActor(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(apperrors.Unauthorized().ToResponse())
}
