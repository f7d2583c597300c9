package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"debitcard_back/internal/wallet"
	"debitcard_back/models"
	"debitcard_back/pkg/config"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SessionService signs a wallet in by an EIP-191 signature over a timestamped
// message and hands out an HS256 token whose subject is the checksum address.
type SessionService struct {
	prefix string
	secret []byte
	cfg    config.AuthConfig
	now    func() time.Time
}

func NewSessionService(appName string, cfg config.AuthConfig) *SessionService {
	return &SessionService{
		prefix: appName + " sign-in: ",
		secret: []byte(cfg.JWTSecret),
		cfg:    cfg,
		now:    time.Now,
	}
}

func (s *SessionService) Enabled() bool {
	return len(s.secret) > 0
}

func (s *SessionService) SignInMessage(at time.Time) string {
	return s.prefix + strconv.FormatInt(at.Unix(), 10)
}

func (s *SessionService) Login(_ context.Context, in models.SessionInput) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrSessionsDisabled
	}

	address, err := wallet.Normalize(in.Address)
	if err != nil {
		return "", time.Time{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if err := s.checkMessage(in.Message); err != nil {
		return "", time.Time{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if err := wallet.VerifySignature(address, in.Message, in.Signature); err != nil {
		logrus.WithField("wallet", address).Warnf("sign-in refused: %s", err)
		return "", time.Time{}, errors.Wrap(ErrUnauthorized, err.Error())
	}

	now := s.now()
	expires := now.Add(s.cfg.SessionTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   address,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}
	return signed, expires, nil
}

// Parse returns the wallet a token was issued to.
func (s *SessionService) Parse(tokenString string) (string, error) {
	if !s.Enabled() {
		return "", ErrSessionsDisabled
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}

	address, err := wallet.Normalize(claims.Subject)
	if err != nil {
		return "", ErrUnauthorized
	}
	return address, nil
}

func (s *SessionService) checkMessage(message string) error {
	if !strings.HasPrefix(message, s.prefix) {
		return errors.New("unexpected sign-in message")
	}
	unix, err := strconv.ParseInt(strings.TrimPrefix(message, s.prefix), 10, 64)
	if err != nil {
		return errors.New("sign-in message without timestamp")
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age < -s.cfg.SignInWindow || age > s.cfg.SignInWindow {
		return errors.New("sign-in message expired")
	}
	return nil
}
