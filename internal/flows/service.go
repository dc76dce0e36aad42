package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.SessionStore != nil && s.deps.Create.SessionStore != nil
}

func (s Service) Create(ctx context.Context, req CreateRequest) (string, error) {
	return RunCreate(ctx, req, s.deps.Create)
}

func (s Service) Validate(ctx context.Context, sessionID string) ValidateResult {
	return RunValidate(ctx, sessionID, s.deps.Validate)
}

func (s Service) Refresh(ctx context.Context, sessionID string) (bool, error) {
	return RunRefresh(ctx, sessionID, s.deps.Refresh)
}

func (s Service) Login(ctx context.Context, account, password string) (*LoginResult, error) {
	return RunLogin(ctx, account, password, s.deps.Login)
}
