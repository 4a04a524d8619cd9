//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iliyamo/karaoke-booking/internal/clock"
	"github.com/iliyamo/karaoke-booking/internal/database"
	"github.com/iliyamo/karaoke-booking/internal/model"
	"github.com/iliyamo/karaoke-booking/internal/repository"
	"github.com/iliyamo/karaoke-booking/internal/service"
)

// startMySQL runs a throwaway MySQL server and returns a migrated
// connection to it.
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.4",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "secret",
				"MYSQL_DATABASE":      "karaoke",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("3306/tcp"),
				wait.ForLog("ready for connections").WithOccurrence(2),
			).WithDeadline(3 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("mysql container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}

	var db *sql.DB
	for attempt := 0; attempt < 30; attempt++ {
		db, err = database.Open("root", "secret", host, port.Port(), "karaoke")
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type seeded struct {
	dj     model.DJ
	venue  model.Venue
	second model.Venue
}

func seed(t *testing.T, db *sql.DB, cap int) seeded {
	t.Helper()
	ctx := context.Background()
	dj := model.DJ{
		FullName:           "Nova Rossi",
		StageName:          "DJ Nova",
		Email:              fmt.Sprintf("nova-%d@example.com", time.Now().UnixNano()),
		QRCodeID:           fmt.Sprintf("DJ-NOVA-2026-%08d", time.Now().UnixNano()%100000000),
		MaxBookingsPerUser: cap,
	}
	if err := repository.NewDJRepo(db).Create(ctx, &dj, "correct horse", 4); err != nil {
		t.Fatalf("create dj: %v", err)
	}
	venues := repository.NewVenueRepo(db)
	first := model.Venue{DJID: dj.ID, Name: "Blue Note"}
	second := model.Venue{DJID: dj.ID, Name: "Red Room"}
	if err := venues.Create(ctx, &first); err != nil {
		t.Fatalf("create venue: %v", err)
	}
	if err := venues.Create(ctx, &second); err != nil {
		t.Fatalf("create venue: %v", err)
	}
	if _, err := repository.NewSongRepo(db).BulkCreate(ctx, dj.ID, []string{"Volare", "Azzurro", "Volare"}); err != nil {
		t.Fatalf("import songs: %v", err)
	}
	return seeded{dj: dj, venue: first, second: second}
}

func TestMySQLBookingLifecycle(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	s := seed(t, db, 3)

	store := repository.NewStore(db)
	clk := clock.Fake(time.Now().UTC().Truncate(time.Second))
	logger := zerolog.Nop()
	registry := service.NewVenueRegistry(store, logger)
	sessions := service.NewSessionManager(store, clk, time.Hour, logger)
	ledger := service.NewBookingLedger(store, clk, nil, logger)

	if _, err := sessions.Start(ctx, s.dj.QRCodeID, service.RequestMeta{}); err != service.ErrNoActiveVenue {
		t.Fatalf("Start without active venue = %v", err)
	}
	if active, err := registry.Toggle(ctx, s.venue.ID, s.dj.ID); err != nil || !active {
		t.Fatalf("Toggle = %v, %v", active, err)
	}

	v, err := sessions.Start(ctx, s.dj.QRCodeID, service.RequestMeta{UserAgent: "it", IPAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Concurrent requests through one session never exceed the cap.
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.CreateAttendeeBooking(ctx, v.Session, service.BookingInput{UserName: "Giulia", Song: "Volare"})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			} else if err != service.ErrRateLimitExceeded {
				t.Errorf("CreateAttendeeBooking: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 3 {
		t.Fatalf("created %d bookings, want 3", created)
	}

	list, err := ledger.ListForSession(ctx, v.Session)
	if err != nil {
		t.Fatalf("ListForSession: %v", err)
	}
	if len(list.Bookings) != 3 {
		t.Fatalf("ListForSession = %d bookings", len(list.Bookings))
	}
	if n, ok := list.Remaining.Count(); !ok || n != 0 {
		t.Errorf("remaining = %v", list.Remaining)
	}

	del, err := ledger.DeleteByAttendee(ctx, v.Session, list.Bookings[0].ID)
	if err != nil {
		t.Fatalf("DeleteByAttendee: %v", err)
	}
	if del.BookingCount != 2 {
		t.Errorf("booking_count after delete = %d, want 2", del.BookingCount)
	}

	if _, err := registry.Toggle(ctx, s.second.ID, s.dj.ID); err != nil {
		t.Fatalf("Toggle second: %v", err)
	}
	if _, err := sessions.Validate(ctx, v.Session.ID.String()); err != service.ErrVenueNoLongerActive {
		t.Errorf("Validate after switch = %v", err)
	}

	clk.Advance(2 * time.Hour)
	n, err := sessions.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CleanupExpired = %d, %v", n, err)
	}
	var orphaned int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bookings WHERE venue_id = ? AND session_id IS NULL", s.venue.ID).Scan(&orphaned); err != nil {
		t.Fatalf("count bookings: %v", err)
	}
	if orphaned != 2 {
		t.Errorf("bookings kept without session = %d, want 2", orphaned)
	}
}

func TestMySQLConcurrentToggleKeepsOneActive(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	s := seed(t, db, service.UnlimitedSetting)
	registry := service.NewVenueRegistry(repository.NewStore(db), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := s.venue.ID
		if i%2 == 1 {
			id = s.second.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = registry.Toggle(ctx, id, s.dj.ID)
		}()
	}
	wg.Wait()

	var active int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM venues WHERE dj_id = ? AND active", s.dj.ID).Scan(&active); err != nil {
		t.Fatalf("count active: %v", err)
	}
	if active > 1 {
		t.Errorf("%d active venues, want at most 1", active)
	}
}

func TestMySQLSongCatalog(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()
	s := seed(t, db, 2)
	songs := repository.NewSongRepo(db)

	n, err := songs.Count(ctx, s.dj.ID)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}
	if _, err := songs.Create(ctx, s.dj.ID, "Volare"); err != repository.ErrConflict {
		t.Errorf("duplicate Create = %v, want ErrConflict", err)
	}
	titles, err := songs.Search(ctx, s.dj.ID, "zzur", 10)
	if err != nil || len(titles) != 1 || titles[0] != "Azzurro" {
		t.Errorf("Search = %v, %v", titles, err)
	}
}
