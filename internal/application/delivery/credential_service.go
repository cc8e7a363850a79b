package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/deliverysync/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Prober performs an ephemeral login that persists nothing
type Prober interface {
	Probe(ctx context.Context, platform delivery.Platform, creds delivery.LoginCredentials) (*ActionResult, error)
}

// SaveCredentialsInput is the input of SaveCredentials
type SaveCredentialsInput struct {
	Platform   delivery.Platform
	Username   string
	Password   string
	PortalURL  string
	SyncConfig *delivery.SyncConfig
}

// TestCredentialsInput is the input of TestCredentials
type TestCredentialsInput struct {
	Platform  delivery.Platform
	Username  string
	Password  string
	PortalURL string
}

// CredentialService is the credential vault: one sealed login per
// (restaurant, platform)
type CredentialService struct {
	repo   delivery.CredentialRepository
	cipher delivery.PasswordCipher
	prober Prober
	audit  delivery.AuditLogger
	reader *CredentialReader
	now    func() time.Time
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(deps Dependencies, prober Prober) *CredentialService {
	deps = deps.withDefaults()
	return &CredentialService{
		repo:   deps.Credentials,
		cipher: deps.Cipher,
		prober: prober,
		audit:  deps.Audit,
		reader: NewCredentialReader(deps.Credentials, deps.Cipher),
		now:    deps.Now,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// SaveCredentials seals the password and stores a new credential. A second
// save for the same key fails with a CredentialConflictError.
func (s *CredentialService) SaveCredentials(ctx context.Context, restaurantID string, input SaveCredentialsInput) (*delivery.CredentialView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if err := requirePlatform(input.Platform); err != nil {
		return nil, err
	}
	if input.Password == "" {
		return nil, delivery.NewValidationError("password is required")
	}
	if err := input.SyncConfig.Validate(); err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Seal(input.Password, delivery.CredentialAAD(restaurantID, input.Platform))
	if err != nil {
		return nil, fmt.Errorf("seal password: %w", err)
	}

	cred, err := delivery.NewCredential(restaurantID, input.Platform, input.Username, sealed, s.now())
	if err != nil {
		return nil, err
	}
	cred.PortalURL = strings.TrimSpace(input.PortalURL)
	cred.SyncConfig = input.SyncConfig

	err = s.repo.Create(ctx, cred)
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Platform:     input.Platform,
		Action:       delivery.AuditCredentialsSaved,
		Outcome:      outcomeOf(err),
		Detail:       withError(map[string]any{"username": cred.Username}, err),
		At:           s.now(),
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Credentials saved",
		zap.String("restaurant_id", restaurantID),
		zap.String("platform", input.Platform.String()),
	)
	view := cred.View()
	return &view, nil
}

// GetCredentials returns the redacted credential for a key
func (s *CredentialService) GetCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.CredentialView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if err := requirePlatform(platform); err != nil {
		return nil, err
	}
	cred, err := s.repo.FindByKey(ctx, restaurantID, platform)
	if err != nil {
		return nil, err
	}
	view := cred.View()
	return &view, nil
}

// GetAllCredentials returns every redacted credential of a restaurant
func (s *CredentialService) GetAllCredentials(ctx context.Context, restaurantID string) ([]delivery.CredentialView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	creds, err := s.repo.FindByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	views := make([]delivery.CredentialView, 0, len(creds))
	for i := range creds {
		views = append(views, creds[i].View())
	}
	return views, nil
}

// UpdateCredentials applies a partial update. The password is re-sealed only
// when the patch carries one.
func (s *CredentialService) UpdateCredentials(ctx context.Context, restaurantID string, platform delivery.Platform, patch delivery.CredentialPatch) (*delivery.CredentialView, error) {
	if err := requireRestaurant(restaurantID); err != nil {
		return nil, err
	}
	if err := requirePlatform(platform); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, delivery.NewValidationError("nothing to update")
	}

	cred, err := s.repo.FindByKey(ctx, restaurantID, platform)
	if err != nil {
		return nil, err
	}
	if err := cred.Apply(patch, s.now()); err != nil {
		return nil, err
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, delivery.NewValidationError("password cannot be empty")
		}
		sealed, err := s.cipher.Seal(*patch.Password, cred.AAD())
		if err != nil {
			return nil, fmt.Errorf("seal password: %w", err)
		}
		cred.EncryptedPassword = sealed
	}

	err = s.repo.Update(ctx, cred)
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Platform:     platform,
		Action:       delivery.AuditCredentialsUpdated,
		Outcome:      outcomeOf(err),
		Detail:       withError(map[string]any{"fields": patchedFields(patch)}, err),
		At:           s.now(),
	})
	if err != nil {
		return nil, err
	}
	view := cred.View()
	return &view, nil
}

// DeleteCredentials removes the credential for a key
func (s *CredentialService) DeleteCredentials(ctx context.Context, restaurantID string, platform delivery.Platform) error {
	if err := requireRestaurant(restaurantID); err != nil {
		return err
	}
	if err := requirePlatform(platform); err != nil {
		return err
	}
	err := s.repo.Delete(ctx, restaurantID, platform)
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Platform:     platform,
		Action:       delivery.AuditCredentialsDeleted,
		Outcome:      outcomeOf(err),
		Detail:       errorDetail(err),
		At:           s.now(),
	})
	return err
}

// TestCredentials tries an ephemeral headless login. Neither credentials nor
// sessions are written whatever the outcome. Portal-side failures are reported
// as {success: false}; only invalid input is returned as an error.
func (s *CredentialService) TestCredentials(ctx context.Context, restaurantID string, input TestCredentialsInput) (*ActionResult, error) {
	if err := requirePlatform(input.Platform); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Username) == "" {
		return nil, delivery.NewValidationError("username is required")
	}
	if input.Password == "" {
		return nil, delivery.NewValidationError("password is required")
	}

	result, err := s.prober.Probe(ctx, input.Platform, delivery.LoginCredentials{
		Username:  strings.TrimSpace(input.Username),
		Password:  input.Password,
		PortalURL: strings.TrimSpace(input.PortalURL),
	})
	if err != nil {
		if delivery.KindOf(err) == delivery.KindValidation || errors.Is(err, context.Canceled) {
			return nil, err
		}
		result = &ActionResult{Success: false, Message: delivery.UserMessage(err)}
	}

	outcome := delivery.AuditOutcomeSuccess
	if !result.Success {
		outcome = delivery.AuditOutcomeFailure
	}
	audit(ctx, s.audit, delivery.AuditEntry{
		RestaurantID: restaurantID,
		Platform:     input.Platform,
		Action:       delivery.AuditCredentialsTested,
		Outcome:      outcome,
		Detail:       map[string]any{"username": strings.TrimSpace(input.Username), "message": result.Message},
		At:           s.now(),
	})
	return result, nil
}

// RevealPassword opens the stored password. It is not exposed over HTTP.
func (s *CredentialService) RevealPassword(ctx context.Context, restaurantID string, platform delivery.Platform) (string, error) {
	creds, err := s.reader.Login(ctx, restaurantID, platform)
	if err != nil {
		return "", err
	}
	return creds.Password, nil
}

// ---------------------------------------------------------------------------
// CredentialReader
// ---------------------------------------------------------------------------

// CredentialReader opens stored credentials for automated logins
type CredentialReader struct {
	repo   delivery.CredentialRepository
	cipher delivery.PasswordCipher
}

// NewCredentialReader creates a new CredentialReader
func NewCredentialReader(repo delivery.CredentialRepository, cipher delivery.PasswordCipher) *CredentialReader {
	return &CredentialReader{repo: repo, cipher: cipher}
}

// Login returns the plaintext login stored for a key
func (r *CredentialReader) Login(ctx context.Context, restaurantID string, platform delivery.Platform) (*delivery.LoginCredentials, error) {
	cred, err := r.repo.FindByKey(ctx, restaurantID, platform)
	if err != nil {
		return nil, err
	}
	password, err := r.cipher.Open(cred.EncryptedPassword, cred.AAD())
	if err != nil {
		return nil, fmt.Errorf("open stored password for %s: %w", platform, err)
	}
	return &delivery.LoginCredentials{
		Username:  cred.Username,
		Password:  password,
		PortalURL: cred.PortalURL,
	}, nil
}

func patchedFields(p delivery.CredentialPatch) []string {
	var fields []string
	if p.Username != nil {
		fields = append(fields, "username")
	}
	if p.Password != nil {
		fields = append(fields, "password")
	}
	if p.PortalURL != nil {
		fields = append(fields, "portal_url")
	}
	if p.SyncConfig != nil {
		fields = append(fields, "sync_config")
	}
	if p.IsActive != nil {
		fields = append(fields, "is_active")
	}
	return fields
}

func withError(detail map[string]any, err error) map[string]any {
	for k, v := range errorDetail(err) {
		detail[k] = v
	}
	return detail
}
