package services

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kariyab/kariyab-backend/internal/apperrors"
	"github.com/kariyab/kariyab-backend/internal/models"
	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

// OTP expiry is jittered inside this window on every issuance
const (
	otpExpiryMin = 2 * time.Minute
	otpExpiryMax = 5 * time.Minute
)

// OTPService creates and validates OTP requests against the OTP ledger.
// Delivery goes out through the SMS channel and never blocks or fails the
// issuance.
type OTPService struct {
	store          storage.Store
	sms            SMSSender
	jitter         utils.Jitter
	maxAttempts    int
	resendCooldown time.Duration
	now            func() time.Time
}

// NewOTPService creates a new OTP service
func NewOTPService(store storage.Store, sms SMSSender, jitter utils.Jitter, maxAttempts int, resendCooldown time.Duration) *OTPService {
	return &OTPService{
		store:          store,
		sms:            sms,
		jitter:         jitter,
		maxAttempts:    maxAttempts,
		resendCooldown: resendCooldown,
		now:            time.Now,
	}
}

// OtpIssueResult is what the caller gets back from an issuance: the opaque
// handle and the expiry. Never the code, never whether the phone is
// registered.
type OtpIssueResult struct {
	RequestID string    `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OtpVerification is the proven outcome of a successful verify call.
type OtpVerification struct {
	Phone   string
	Purpose string
}

// CreateOtpRequest issues a fresh OTP for the phone unless an unconsumed
// request is still inside its resend cooldown. The phone is expected to be
// in canonical +98 format already.
func (s *OTPService) CreateOtpRequest(phone, purpose, requestIP, userAgent string) (*OtpIssueResult, error) {
	if purpose != models.OtpPurposeLogin && purpose != models.OtpPurposeRegister {
		return nil, apperrors.Validation("OTP_INVALID_PURPOSE", "purpose must be login or register")
	}

	now := s.now()

	code, err := utils.GenerateSecureOTP()
	if err != nil {
		return nil, apperrors.Internal("failed to generate OTP code")
	}

	req := &models.OtpRequest{
		Phone:             phone,
		Purpose:           purpose,
		CodeHash:          utils.HashSecret(code),
		ExpiresAt:         now.Add(s.jitter.DurationBetween(otpExpiryMin, otpExpiryMax)),
		ResendAvailableAt: now.Add(s.resendCooldown),
		AttemptsLeft:      s.maxAttempts,
		RequestIP:         requestIP,
		UserAgent:         userAgent,
	}

	// Cooldown: an unconsumed request created inside the window blocks a
	// new issuance (SMS cost abuse protection). The check and the insert
	// run under a per-phone lock so concurrent requests cannot all pass
	// the check before any row lands.
	err = s.store.WithPhoneLock(phone, func() error {
		if existing, err := s.store.GetActiveOtpRequestByPhone(phone); err == nil {
			if now.Before(existing.ResendAvailableAt) {
				wait := int(existing.ResendAvailableAt.Sub(now).Seconds())
				if wait < 1 {
					wait = 1
				}
				return apperrors.Throttled("OTP_COOLDOWN",
					fmt.Sprintf("an OTP was sent recently, retry in %d seconds", wait), wait)
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return apperrors.Internal("failed to check OTP cooldown")
		}

		created, err := s.store.CreateOtpRequest(req)
		if err != nil {
			return apperrors.Internal("failed to store OTP request")
		}
		req = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Fire-and-forget delivery: the code is already valid, so a failed
	// send just means the client retries after cooldown.
	go func(phone, code string) {
		body := fmt.Sprintf("Your Kariyab verification code is %s", code)
		if err := s.sms.Send(phone, body); err != nil {
			log.Printf("⚠️  OTP SMS delivery failed for %s: %v", phone, err)
		}
	}(phone, code)

	return &OtpIssueResult{
		RequestID: req.RequestID,
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// VerifyOtp checks the supplied code against the stored request. Terminal
// states (consumed, expired, exhausted) are checked before the attempt is
// charged, so an expired verify never burns attempts. The decrement itself
// is atomic at the storage layer and is persisted before any comparison
// result is returned.
func (s *OTPService) VerifyOtp(requestID, code string) (*OtpVerification, error) {
	req, err := s.store.GetOtpRequestByRequestID(requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("OTP_NOT_FOUND", "OTP request not found")
		}
		return nil, apperrors.Internal("failed to load OTP request")
	}

	now := s.now()
	if req.IsUsed() {
		return nil, apperrors.Validation("OTP_ALREADY_USED", "OTP code already used")
	}
	if req.IsExpired(now) {
		return nil, apperrors.Validation("OTP_EXPIRED", "OTP code expired, request a new one")
	}
	if req.IsExhausted() {
		return nil, apperrors.Validation("OTP_ATTEMPTS_EXHAUSTED", "too many attempts, request a new code")
	}

	remaining, err := s.store.DecrementOtpAttempts(req.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNoAttemptsLeft) {
			return nil, apperrors.Validation("OTP_ATTEMPTS_EXHAUSTED", "too many attempts, request a new code")
		}
		return nil, apperrors.Internal("failed to record OTP attempt")
	}

	supplied := utils.HashSecret(code)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(req.CodeHash)) != 1 {
		if remaining <= 0 {
			return nil, apperrors.Validation("OTP_ATTEMPTS_EXHAUSTED", "invalid code, attempts exhausted")
		}
		return nil, apperrors.Validation("OTP_INVALID_CODE",
			fmt.Sprintf("invalid code, %d attempts remaining", remaining))
	}

	if err := s.store.MarkOtpUsed(req.ID, now, nil); err != nil {
		if errors.Is(err, storage.ErrAlreadyUsed) {
			return nil, apperrors.Validation("OTP_ALREADY_USED", "OTP code already used")
		}
		return nil, apperrors.Internal("failed to consume OTP request")
	}

	return &OtpVerification{Phone: req.Phone, Purpose: req.Purpose}, nil
}

// LinkOtpToIdentity records which identity the request ultimately verified.
// Best-effort audit trail; failures are not surfaced to the flow.
func (s *OTPService) LinkOtpToIdentity(requestID string, identityID uint) {
	req, err := s.store.GetOtpRequestByRequestID(requestID)
	if err != nil {
		return
	}
	if req.IdentityID == nil {
		if err := s.store.LinkOtpIdentity(req.ID, identityID); err != nil {
			log.Printf("⚠️  failed to link OTP %s to identity %d: %v", requestID, identityID, err)
		}
	}
}
