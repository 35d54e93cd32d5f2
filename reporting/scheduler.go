package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	"github.com/tkamdem/livrazone/core/tenant"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	groupdomain "github.com/tkamdem/livrazone/group/domain"
	"github.com/tkamdem/livrazone/ingest"
)

// statusLabels maps statuses to the French labels operators read.
var statusLabels = map[deliverydomain.Status]string{
	deliverydomain.StatusPending:       "En attente",
	deliverydomain.StatusPickup:        "Ramassages",
	deliverydomain.StatusDelivered:     "Livrées",
	deliverydomain.StatusFailed:        "Échecs",
	deliverydomain.StatusClientAbsent:  "Clients absents",
	deliverydomain.StatusNoAnswerZone1: "Ne décroche pas (zone 1)",
	deliverydomain.StatusNoAnswerZone2: "Ne décroche pas (zone 2)",
}

// statusOrder keeps report lines stable across runs.
var statusOrder = []deliverydomain.Status{
	deliverydomain.StatusDelivered,
	deliverydomain.StatusPending,
	deliverydomain.StatusPickup,
	deliverydomain.StatusClientAbsent,
	deliverydomain.StatusNoAnswerZone1,
	deliverydomain.StatusNoAnswerZone2,
	deliverydomain.StatusFailed,
}

// Scheduler broadcasts a daily per-agency summary to that agency's
// active groups at the configured local time.
type Scheduler struct {
	agencies   agencydomain.Repository
	groups     groupdomain.Repository
	deliveries deliverydomain.Repository
	sender     ingest.Sender

	at  string // HH:MM
	loc *time.Location
}

func NewScheduler(
	agencies agencydomain.Repository,
	groups groupdomain.Repository,
	deliveries deliverydomain.Repository,
	sender ingest.Sender,
	at string,
	loc *time.Location,
) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		agencies:   agencies,
		groups:     groups,
		deliveries: deliveries,
		sender:     sender,
		at:         at,
		loc:        loc,
	}
}

// Run blocks until ctx is cancelled, firing once per day at the
// configured time.
func (s *Scheduler) Run(ctx context.Context) {
	hour, minute, err := parseClock(s.at)
	if err != nil {
		logrus.Errorf("[REPORT] Invalid report time %q: %v", s.at, err)
		return
	}
	logrus.Infof("[REPORT] Daily report scheduled at %02d:%02d (%s)", hour, minute, s.loc)

	for {
		next := nextOccurrence(time.Now().In(s.loc), hour, minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		s.BroadcastAll(ctx)
	}
}

// BroadcastAll sends today's summary for every active agency.
func (s *Scheduler) BroadcastAll(ctx context.Context) {
	agencies, err := s.agencies.ListActiveTenants(ctx)
	if err != nil {
		logrus.Errorf("[REPORT] Failed to list agencies: %v", err)
		return
	}
	for _, agency := range agencies {
		if err := s.broadcastAgency(ctx, agency.ID); err != nil {
			logrus.WithError(err).Errorf("[REPORT] Broadcast failed for agency %d", agency.ID)
		}
	}
}

func (s *Scheduler) broadcastAgency(ctx context.Context, agencyID int64) error {
	scope := tenant.ForAgency(agencyID)
	stats, err := s.deliveries.DailyStats(ctx, "", nil, scope)
	if err != nil {
		return err
	}
	if stats.Total == 0 {
		logrus.Debugf("[REPORT] No activity for agency %d, skipping", agencyID)
		return nil
	}

	groups, err := s.groups.ListActiveByAgency(ctx, agencyID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}

	text := FormatDaily(stats)
	for _, g := range groups {
		if err := s.sender.SendText(ctx, g.ExternalID, text); err != nil {
			logrus.WithError(err).Errorf("[REPORT] Send failed for group %s", g.ExternalID)
		}
	}
	return nil
}

// FormatDaily renders the summary text posted to the groups.
func FormatDaily(stats *deliverydomain.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Bilan du %s\n\n", stats.Date)
	fmt.Fprintf(&b, "Total livraisons: %d\n", stats.Total)

	for _, st := range statusOrder {
		if n := stats.ByStatus[st]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", statusLabels[st], n)
		}
	}
	// Statuses outside the known set still show up rather than vanish.
	var extras []string
	for st := range stats.ByStatus {
		if _, known := statusLabels[st]; !known {
			extras = append(extras, string(st))
		}
	}
	sort.Strings(extras)
	for _, st := range extras {
		fmt.Fprintf(&b, "  %s: %d\n", st, stats.ByStatus[deliverydomain.Status(st)])
	}

	fmt.Fprintf(&b, "\n💰 Encaissé: %s FCFA\n", humanize.Comma(stats.Collected))
	fmt.Fprintf(&b, "📦 Attendu: %s FCFA\n", humanize.Comma(stats.Due))
	fmt.Fprintf(&b, "⏳ Restant: %s FCFA", humanize.Comma(stats.Remaining))
	return b.String()
}

func parseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// nextOccurrence returns the next time the clock reads hour:minute,
// tomorrow when today's slot already passed.
func nextOccurrence(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
