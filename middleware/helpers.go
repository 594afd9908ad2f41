package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/roster-system/models"
)

const (
	claimUserID = "user_id"
	claimRole   = "role"
)

var errNoClaims = errors.New("user claims not found in context")

func claimsFrom(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errNoClaims
	}
	return claims, nil
}

// GetUserIDFromContext возвращает id пользователя, выполняющего запрос.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return 0, err
	}
	return userIDFromClaims(claims)
}

// userIDFromClaims accepts only a positive whole JSON number.
func userIDFromClaims(claims jwt.MapClaims) (int, error) {
	raw, ok := claims[claimUserID].(float64)
	if !ok || raw != math.Trunc(raw) || raw <= 0 || raw > math.MaxInt32 {
		return 0, fmt.Errorf("invalid '%s' claim: %v", claimUserID, claims[claimUserID])
	}
	return int(raw), nil
}

// GetUserRoleFromContext возвращает роль; токен без роли означает обычного пользователя.
func GetUserRoleFromContext(ctx context.Context) (models.UserRole, error) {
	claims, err := claimsFrom(ctx)
	if err != nil {
		return "", err
	}
	raw, present := claims[claimRole]
	if !present {
		return models.RoleUser, nil
	}
	role, _ := raw.(string)
	switch models.UserRole(role) {
	case models.RoleAdmin, models.RoleUser:
		return models.UserRole(role), nil
	}
	return "", fmt.Errorf("invalid '%s' claim: %v", claimRole, raw)
}
