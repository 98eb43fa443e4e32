// Package notify delivers incident and approval notifications to Slack.
package notify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"github.com/autoremedy/autoremedy/internal/database"
)

// messagePoster is the subset of the Slack API the notifier needs
type messagePoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier sends notifications via the Slack Web API
type SlackNotifier struct {
	client          messagePoster
	alertChannel    string
	approvalChannel string
}

// NewSlackNotifier creates a notifier using a bot token. Returns nil if no
// token is configured so callers can treat notifications as optional.
func NewSlackNotifier(botToken, alertChannel, approvalChannel string) *SlackNotifier {
	if botToken == "" {
		log.Printf("SlackNotifier: No bot token configured, notifications disabled")
		return nil
	}
	return &SlackNotifier{
		client:          slack.New(botToken),
		alertChannel:    alertChannel,
		approvalChannel: approvalChannel,
	}
}

// NotifyIncident announces a new incident in the alert channel
func (n *SlackNotifier) NotifyIncident(incident *database.ErrorIncident) error {
	message := BuildIncidentMessage(incident)
	_, _, err := n.client.PostMessage(
		n.alertChannel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post incident notification: %w", err)
	}
	return nil
}

// NotifyApprovalRequest posts an approval request mentioning the eligible
// approvers, with approve/reject buttons carrying the approval ID
func (n *SlackNotifier) NotifyApprovalRequest(record *database.ApprovalRecord, incident *database.ErrorIncident) error {
	message := BuildApprovalRequestMessage(record, incident)

	channel := record.NotifyChannel
	if channel == "" {
		channel = n.approvalChannel
	}

	_, _, err := n.client.PostMessage(
		channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionBlocks(BuildApprovalRequestBlocks(record, message)...),
	)
	if err != nil {
		return fmt.Errorf("failed to post approval request: %w", err)
	}
	return nil
}

// NotifyEmergencyOverride announces an emergency-approved remediation at
// critical severity
func (n *SlackNotifier) NotifyEmergencyOverride(record *database.ApprovalRecord, incident *database.ErrorIncident) error {
	channel := record.NotifyChannel
	if channel == "" {
		channel = n.approvalChannel
	}

	message := fmt.Sprintf("🚨 *Emergency remediation override* for incident `%s`\n%s: %s in `%s/%s`\nApproved by %s (approval `%s`)",
		incident.ID, incident.ErrorType, incident.ErrorMessage,
		incident.ServiceName, incident.Environment, record.ApprovedBy, record.ID)

	_, _, err := n.client.PostMessage(
		channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post emergency override notification: %w", err)
	}
	return nil
}

// NotifyApprovalResult posts the outcome of an approval request
func (n *SlackNotifier) NotifyApprovalResult(record *database.ApprovalRecord) error {
	message := BuildApprovalResultMessage(record)

	channel := record.NotifyChannel
	if channel == "" {
		channel = n.approvalChannel
	}

	_, _, err := n.client.PostMessage(
		channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post approval result: %w", err)
	}
	return nil
}

// NotifyAlert posts a monitoring alert to the alert channel
func (n *SlackNotifier) NotifyAlert(rule *database.AlertRule, message string) error {
	text := fmt.Sprintf("%s *%s*\n%s", database.GetSeverityEmoji(rule.Severity), rule.Name, message)
	_, _, err := n.client.PostMessage(
		n.alertChannel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post alert: %w", err)
	}
	return nil
}

// NotifyAlertResolved announces an alert recovery in the alert channel
func (n *SlackNotifier) NotifyAlertResolved(rule *database.AlertRule, message string) error {
	text := fmt.Sprintf("✅ *%s*\n%s", rule.Name, message)
	_, _, err := n.client.PostMessage(
		n.alertChannel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post alert resolution: %w", err)
	}
	return nil
}

// BuildIncidentMessage formats a new-incident announcement
func BuildIncidentMessage(incident *database.ErrorIncident) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s *New incident* `%s`\n", database.GetSeverityEmoji(incident.Severity), incident.ID)
	fmt.Fprintf(&b, "*%s*: %s\n", incident.ErrorType, incident.ErrorMessage)
	fmt.Fprintf(&b, "Service: `%s` | Environment: `%s` | Severity: `%s`", incident.ServiceName, incident.Environment, incident.Severity)
	if incident.FilePath != "" {
		fmt.Fprintf(&b, "\nLocation: `%s", incident.FilePath)
		if incident.LineNumber > 0 {
			fmt.Fprintf(&b, ":%d", incident.LineNumber)
		}
		b.WriteString("`")
	}
	return b.String()
}

// BuildApprovalRequestMessage formats an approval request with approver
// mentions
func BuildApprovalRequestMessage(record *database.ApprovalRecord, incident *database.ErrorIncident) string {
	mentions := make([]string, len(record.Approvers))
	for i, approver := range record.Approvers {
		mentions[i] = "@" + approver
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔐 *Remediation approval required* (%s)\n", strings.Join(mentions, " "))
	fmt.Fprintf(&b, "Incident `%s`: %s in `%s/%s` (severity: %s)\n",
		incident.ID, incident.ErrorType, incident.ServiceName, incident.Environment, incident.Severity)
	if record.RequireMultiple {
		b.WriteString("Two distinct approvals are required.\n")
	}
	fmt.Fprintf(&b, "Expires at %s | Approval ID: `%s`", record.ExpiresAt.Format("15:04 MST"), record.ID)
	return b.String()
}

// BuildApprovalRequestBlocks wraps the request text in Block Kit blocks
// with approve and reject buttons. The buttons carry the approval record ID
// as their value so the interactive webhook can route the decision.
func BuildApprovalRequestBlocks(record *database.ApprovalRecord, message string) []slack.Block {
	approve := slack.NewButtonBlockElement(
		"approve_remediation",
		record.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false),
	).WithStyle(slack.StylePrimary)

	reject := slack.NewButtonBlockElement(
		"reject_remediation",
		record.ID,
		slack.NewTextBlockObject(slack.PlainTextType, "Reject", false, false),
	).WithStyle(slack.StyleDanger)

	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, message, false, false),
			nil,
			nil,
		),
		slack.NewActionBlock("approval_actions", approve, reject),
	}
}

// BuildApprovalResultMessage formats an approval outcome
func BuildApprovalResultMessage(record *database.ApprovalRecord) string {
	switch record.Status {
	case database.ApprovalStatusApproved:
		msg := fmt.Sprintf("✅ Remediation approved by %s (approval `%s`)", record.ApprovedBy, record.ID)
		if record.Comment != "" {
			msg += fmt.Sprintf("\n> %s", record.Comment)
		}
		return msg
	case database.ApprovalStatusRejected:
		msg := fmt.Sprintf("❌ Remediation rejected by %s (approval `%s`)", record.RejectedBy, record.ID)
		if record.Comment != "" {
			msg += fmt.Sprintf("\n> %s", record.Comment)
		}
		return msg
	case database.ApprovalStatusExpired:
		return fmt.Sprintf("⏰ Approval `%s` expired without a decision", record.ID)
	default:
		return fmt.Sprintf("Approval `%s` is %s", record.ID, record.Status)
	}
}
