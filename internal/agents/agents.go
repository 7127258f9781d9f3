// Package agents implements the three workflow roles. Each agent runs as an
// independent participant against the shared document; none of them hold a
// reference to another agent.
package agents

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/llm"
)

// Agent role names double as keys into the shared document's agents map.
const (
	ProductOwnerName       = "product_owner"
	StaffEngineerName      = "staff_engineer"
	EngineeringManagerName = "engineering_manager"
)

// Roles lists every workflow agent in execution order.
var Roles = []string{ProductOwnerName, StaffEngineerName, EngineeringManagerName}

// Agent is one workflow role. Run drives the role's full lifecycle against
// the shared document: initializing, working, then completed or error.
type Agent interface {
	Name() string
	Run(ctx context.Context) error
}

// UsageFunc receives token accounting after each successful completion call.
// A nil UsageFunc disables recording.
type UsageFunc func(llm.Result)

// Options carries the shared wiring for all three agents.
type Options struct {
	Store    *coord.Store
	Completer llm.Completer
	Stack    string
	Backoff  coord.Backoff
	OnUsage  UsageFunc
}

func (o Options) recordUsage(res llm.Result) {
	if o.OnUsage != nil {
		o.OnUsage(res)
	}
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

// logPeerStatuses reports where the other agents stand. Each agent checks on
// its peers once its own work is done.
func logPeerStatuses(p *coord.Participant, name string) {
	statuses, err := p.OtherStatuses()
	if err != nil {
		slog.Warn("peer status check failed", "agent", name, "error", err)
		return
	}

	peers := make([]string, 0, len(statuses))
	for peer := range statuses {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	attrs := []any{"agent", name}
	for _, peer := range peers {
		attrs = append(attrs, peer, string(statuses[peer]))
	}
	slog.Info("peer statuses", attrs...)
}

// inboxContext drains the agent's inbox into a prompt section. Messages are
// marked read as a side effect.
func inboxContext(p *coord.Participant, heading string) (string, error) {
	msgs, err := p.Messages(true)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	for _, msg := range msgs {
		b.WriteString("- ")
		b.WriteString(msg.From)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}
