package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/log"
	"github.com/solarflow/solarflow/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// dailyDocIDLayout keys the daily history by local calendar day.
const dailyDocIDLayout = "2006-01-02"

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. It persists settings, daily totals, and switch events.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// Project ID verification could be here, but we allow empty if inferred.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// GetSettings retrieves the dynamic configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	doc, err := f.client.Collection("config").Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return default settings if not found
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "settings doc missing json")
		return types.Settings{}, 0, fmt.Errorf("settings document missing 'json' field: %w", err)
	}

	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "settings doc json not string")
		return types.Settings{}, 0, fmt.Errorf("settings 'json' field is not a string")
	}

	var s types.Settings
	if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal settings json", slog.Any("err", err))
		return types.Settings{}, 0, fmt.Errorf("failed to unmarshal settings json: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the dynamic configuration to the "config/settings" document.
// It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = f.client.Collection("config").Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// UpsertDailyTotals adds or updates the record for the day covered by totals
// in the "daily_history" collection as a JSON blob. The document ID is the
// calendar day for efficient range queries, so the open day can be written
// repeatedly during the day and finalized at rollover.
func (f *FirestoreProvider) UpsertDailyTotals(ctx context.Context, totals types.DailyTotals, version int) error {
	if totals.Date.IsZero() {
		return fmt.Errorf("daily totals missing date")
	}
	jsonBytes, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to marshal daily totals: %w", err)
	}

	docID := totals.Date.Format(dailyDocIDLayout)
	_, err = f.client.Collection("daily_history").Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": totals.Date,
		"version":   version,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert daily totals: %w", err)
	}
	return nil
}

// GetDailyHistory retrieves daily records within the specified time range.
// Uses document ID range queries for efficient filtering without reading all
// documents.
func (f *FirestoreProvider) GetDailyHistory(ctx context.Context, start, end time.Time) ([]types.DailyTotals, error) {
	coll := f.client.Collection("daily_history")
	startDocID := start.Format(dailyDocIDLayout)
	endDocID := end.Format(dailyDocIDLayout)

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var history []types.DailyTotals
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating daily history: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "daily totals doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("daily totals doc %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "daily totals doc json not string", slog.String("docID", doc.Ref.ID))
			return nil, fmt.Errorf("daily totals doc %s 'json' field is not string", doc.Ref.ID)
		}

		var d types.DailyTotals
		if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal daily totals", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal daily totals (id=%s): %w", doc.Ref.ID, err)
		}
		history = append(history, d)
	}
	return history, nil
}

// GetLatestDailyTotals retrieves the most recent daily record, or nil when
// none exist. The control loop uses it to resume the open day after a restart.
func (f *FirestoreProvider) GetLatestDailyTotals(ctx context.Context) (*types.DailyTotals, error) {
	// firestore automatically creates indexes for top-level fields
	iter := f.client.Collection("daily_history").
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest daily totals doc: %w", err)
	}

	val, err := doc.DataAt("json")
	if err != nil {
		return nil, fmt.Errorf("daily totals doc %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("daily totals doc %s 'json' field is not string", doc.Ref.ID)
	}

	var d types.DailyTotals
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal daily totals (id=%s): %w", doc.Ref.ID, err)
	}
	return &d, nil
}

// InsertSwitchEvent adds a switch event record to the "switch_events"
// collection as a JSON blob. The document ID is the RFC3339 timestamp for
// lexicographic ordering and efficient range queries.
func (f *FirestoreProvider) InsertSwitchEvent(ctx context.Context, event types.SwitchEvent) error {
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal switch event: %w", err)
	}

	docID := event.Timestamp.UTC().Format(time.RFC3339Nano)
	_, err = f.client.Collection("switch_events").Doc(docID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert switch event: %w", err)
	}
	return nil
}

// GetSwitchEvents retrieves switch events within the specified time range.
func (f *FirestoreProvider) GetSwitchEvents(ctx context.Context, start, end time.Time) ([]types.SwitchEvent, error) {
	coll := f.client.Collection("switch_events")
	startDocID := start.UTC().Format(time.RFC3339Nano)
	endDocID := end.UTC().Format(time.RFC3339Nano)

	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(startDocID)).
		Where(firestore.DocumentID, "<", coll.Doc(endDocID)).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var events []types.SwitchEvent
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating switch events: %w", err)
		}

		val, err := doc.DataAt("json")
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "switch event doc missing json", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("switch event doc %s missing 'json' field: %w", doc.Ref.ID, err)
		}

		jsonStr, ok := val.(string)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "switch event doc json not string", slog.String("docID", doc.Ref.ID))
			return nil, fmt.Errorf("switch event doc %s 'json' field is not string", doc.Ref.ID)
		}

		var e types.SwitchEvent
		if err := json.Unmarshal([]byte(jsonStr), &e); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal switch event", slog.String("docID", doc.Ref.ID), slog.Any("err", err))
			return nil, fmt.Errorf("failed to unmarshal switch event (id=%s): %w", doc.Ref.ID, err)
		}
		events = append(events, e)
	}
	return events, nil
}
