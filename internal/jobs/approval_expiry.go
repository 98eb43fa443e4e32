package jobs

import (
	"log"
	"time"

	"github.com/autoremedy/autoremedy/internal/services"
)

// ApprovalExpiryMonitor sweeps pending approvals past their deadline and
// marks them expired so operators are not blocked on dead requests.
type ApprovalExpiryMonitor struct {
	approvals *services.ApprovalService
}

// NewApprovalExpiryMonitor creates a new approval expiry monitor
func NewApprovalExpiryMonitor(approvals *services.ApprovalService) *ApprovalExpiryMonitor {
	return &ApprovalExpiryMonitor{approvals: approvals}
}

// Sweep expires overdue pending approvals and returns how many were expired
func (m *ApprovalExpiryMonitor) Sweep() (int, error) {
	return m.approvals.CheckExpiredApprovals()
}

// Start begins the periodic sweep
func (m *ApprovalExpiryMonitor) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, err := m.Sweep()
			if err != nil {
				log.Printf("Approval expiry monitor error: %v", err)
			} else if expired > 0 {
				log.Printf("Approval expiry monitor: expired %d pending approvals", expired)
			}
		case <-stop:
			log.Println("Approval expiry monitor stopped")
			return
		}
	}
}
