// Package auth issues and verifies work-order tokens: short-lived HS256
// bearer credentials scoped to one file and one requester public key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ghgadelivery/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DownloadType is the only work-order type accepted by the controller.
const DownloadType = "download"

// WorkOrderClaims carries the file the bearer may access and the public key
// envelopes must be personalized for.
type WorkOrderClaims struct {
	jwt.RegisteredClaims
	Type          string `json:"type"`
	FileID        string `json:"file_id"`
	UserPublicKey string `json:"user_public_key"`
}

func GenerateToken(fileID, userPublicKey string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, WorkOrderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Type:          DownloadType,
		FileID:        fileID,
		UserPublicKey: userPublicKey,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. Expired tokens
// yield common.ErrTokenExpired; anything else unusable yields
// common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*WorkOrderClaims, error) {
	claims := &WorkOrderClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.Type != DownloadType || claims.FileID == "" || claims.UserPublicKey == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
