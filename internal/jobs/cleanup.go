package jobs

import (
	"log"
	"time"

	"github.com/kariyab/kariyab-backend/internal/storage"
)

// How long revoked/expired records are kept for audit before deletion
const ledgerRetention = 30 * 24 * time.Hour

// CleanupJob periodically removes dead OTP requests and refresh tokens.
// Correctness never depends on it: expired records are unusable the moment
// they expire, this just keeps the ledgers from growing without bound.
type CleanupJob struct {
	store     storage.Store
	interval  time.Duration
	isRunning bool
	stop      chan struct{}
}

// NewCleanupJob creates a new ledger cleanup job
func NewCleanupJob(store storage.Store, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the cleanup loop
func (j *CleanupJob) Start() {
	if j.isRunning {
		log.Println("Cleanup job already running")
		return
	}

	j.isRunning = true
	log.Println("Starting ledger cleanup job...")
	go j.run()
}

// Stop halts the cleanup loop
func (j *CleanupJob) Stop() {
	if !j.isRunning {
		return
	}
	j.isRunning = false
	close(j.stop)
	log.Println("Stopping ledger cleanup job...")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stop:
			return
		}
	}
}

func (j *CleanupJob) sweep() {
	cutoff := time.Now().Add(-ledgerRetention)

	otps, err := j.store.DeleteExpiredOtpRequests(cutoff)
	if err != nil {
		log.Printf("Error cleaning expired OTP requests: %v", err)
	}

	tokens, err := j.store.DeleteExpiredRefreshTokens(cutoff)
	if err != nil {
		log.Printf("Error cleaning expired refresh tokens: %v", err)
	}

	if otps > 0 || tokens > 0 {
		log.Printf("🧹 Ledger cleanup: removed %d OTP requests, %d refresh tokens", otps, tokens)
	}
}
