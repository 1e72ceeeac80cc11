package jwtutil

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin  = "admin"
	RoleDevice = "device"
)

type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"uname"`
	Role     string `json:"role"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	Issuer string
	ExpMin int
}

func (s *Signer) sign(claims Claims) (string, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.ExpMin) * time.Minute)
	claims.RegisteredClaims = jwt.RegisteredClaims{Issuer: s.Issuer, IssuedAt: jwt.NewNumericDate(now), ExpiresAt: jwt.NewNumericDate(exp)}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.Secret)
}

func (s *Signer) Sign(userID uint, username, role string) (string, error) {
	return s.sign(Claims{UserID: userID, Username: username, Role: role})
}

// SignDevice issues the bearer token an agent presents on poll and result calls.
func (s *Signer) SignDevice(deviceID string) (string, error) {
	return s.sign(Claims{Role: RoleDevice, DeviceID: deviceID})
}

func (s *Signer) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.Issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// ParseDevice checks that tokenStr is a device token this signer issued for
// deviceID. Expiry is ignored so an agent that was offline past its token's
// lifetime can still prove who it is and get a new one.
func (s *Signer) ParseDevice(tokenStr, deviceID string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) { return s.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Issuer != s.Issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}
	if claims.Role != RoleDevice || claims.DeviceID != deviceID {
		return nil, errors.New("token does not belong to device")
	}
	return claims, nil
}
