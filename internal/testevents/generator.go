package testevents

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/finbrief/pkg/logger"
)

// Constants for random selection.
const (
	eventTypeDivisor = 10
	telegramIDFloor  = 100_000_000
	telegramIDRange  = 900_000_000
)

// Constants for event type cases. Chat messages dominate real traffic,
// so several cases map to them.
const (
	caseMessage        = 0
	caseMessageAlt     = 1
	caseMessageAlt2    = 2
	caseMessageAlt3    = 3
	caseAnalysisQuery  = 4
	caseAnalysisQuery2 = 5
	caseSettingsChange = 6
	caseFunctionCall   = 7
	casePurchase       = 8
	caseVerification   = 9
)

var devices = []string{"telegram", "web", "ios", "android"}

var plans = []string{"free", "free", "free", "basic", "pro"}

// randomIndex returns a random int in [0, n) using crypto/rand.
func randomIndex(n int) int {
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// generateEvents creates the specified number of events across a fixed
// population of synthetic users.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating events",
		logger.Int("numEvents", config.NumEvents),
		logger.Int("numUsers", config.NumUsers))

	// Pre-allocate the synthetic user population
	type syntheticUser struct {
		userID     string
		telegramID string
		device     string
		plan       string
	}
	users := make([]syntheticUser, config.NumUsers)
	for i := range users {
		users[i] = syntheticUser{
			userID:     uuid.New().String(),
			telegramID: strconv.Itoa(telegramIDFloor + randomIndex(telegramIDRange)),
			device:     devices[randomIndex(len(devices))],
			plan:       plans[randomIndex(len(plans))],
		}
	}

	events := make([]Event, config.NumEvents)

	// Generate events concurrently
	type eventResult struct {
		index int
		event Event
		err   error
	}

	resultChan := make(chan eventResult, config.NumEvents)

	workerCount := minInt(config.Workers, config.NumEvents)
	eventsPerWorker := config.NumEvents / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * eventsPerWorker
		end := start + eventsPerWorker
		if worker == workerCount-1 {
			end = config.NumEvents // Last worker gets remaining events
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- eventResult{index: i, err: ctx.Err()}
					return
				default:
					u := users[randomIndex(len(users))]
					ev := generateSingleEvent(u.userID, u.telegramID, u.device, u.plan)
					resultChan <- eventResult{index: i, event: ev}
				}
			}
		}(start, end)
	}

	// Collect results
	for i := 0; i < config.NumEvents; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during event generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate event %d: %w", result.index, result.err)
			}
			events[result.index] = result.event
		}
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events successfully", logger.Int("count", len(events)))

	return events, nil
}

// generateSingleEvent creates a single event for the given user.
func generateSingleEvent(userID, telegramID, device, plan string) Event {
	ev := Event{
		UserID:     userID,
		TelegramID: telegramID,
		EventTime:  time.Now().UTC().Format(time.RFC3339),
		Device:     device,
		Plan:       plan,
	}

	switch randomIndex(eventTypeDivisor) {
	case caseMessage, caseMessageAlt, caseMessageAlt2, caseMessageAlt3:
		ev.EventType = "message"
	case caseAnalysisQuery, caseAnalysisQuery2:
		ev.EventType = "analysis_query"
		ev.KPI = "analysis"
	case caseSettingsChange:
		ev.EventType = "settings_change"
	case caseFunctionCall:
		ev.EventType = "function_call"
	case casePurchase:
		ev.EventType = "purchase"
		ev.ProductPurchase = "pro_monthly"
	case caseVerification:
		ev.EventType = "verification"
	default:
		ev.EventType = "message"
	}

	return ev
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
