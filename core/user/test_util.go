package user

import "github.com/openstud/openstud/core"

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		},
	}
}

// MakePasswordResetToken exposes token generation to API tests.
func MakePasswordResetToken(svc Service, usr User) string {
	switch s := svc.(type) {
	case *serviceMock:
		return s.tokens.makeToken(usr)
	case *service:
		return s.tokens.makeToken(usr)
	}
	return ""
}
