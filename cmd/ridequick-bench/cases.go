// README: Bench cases; HTTP contract, trip lifecycle, consistency, concurrency and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridequick/internal/modules/driver"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// Pickup and destination near the seeded NYC fleet.
var (
	benchPickup      = [2]float64{40.7128, -74.0060}
	benchDestination = [2]float64{40.7580, -73.9855}
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	cabTypeID string
	tripID    string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: statusSkip, Note: "dsn not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: statusSkip, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				return Result{Status: statusPass}
			},
		},
		{
			Name: "Migration: tables exist",
			Run:  checkTables,
		},
		statusCase("API: health", http.MethodGet, "/health", nil, http.StatusOK),
		statusCase("API: unauthenticated -> 401", http.MethodGet, "/api/trips", nil, http.StatusUnauthorized),
		{
			Name: "Cab types: list",
			Run: func(ctx context.Context, r *Runner) Result {
				var cabs []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				}
				code, latency, err := r.call(ctx, http.MethodGet, "/api/cab-types", nil, r.token(0), &cabs)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusOK || len(cabs) == 0 {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d cabs=%d", code, len(cabs))}
				}
				r.cabTypeID = cabs[0].ID
				return Result{Status: statusPass, Latency: latency, Note: "using " + cabs[0].Name}
			},
		},
		statusCase("Drivers: nearby", http.MethodGet, fmt.Sprintf("/api/drivers/nearby?lat=%v&lng=%v", benchPickup[0], benchPickup[1]), nil, http.StatusOK),
		statusCase("Drivers: nearby invalid lat -> 400", http.MethodGet, "/api/drivers/nearby?lat=95&lng=0", nil, http.StatusBadRequest),
		{
			Name: "Trips: estimate",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodPost, "/api/trips/estimate", r.tripBody(), http.StatusOK)
			},
		},
		{
			Name: "Trips: missing fields -> 400",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.expect(ctx, http.MethodPost, "/api/trips", map[string]any{"cabTypeId": r.cabTypeID}, http.StatusBadRequest)
			},
		},
		{
			Name: "Trips: invalid coordinates -> 400",
			Run: func(ctx context.Context, r *Runner) Result {
				body := r.tripBody()
				body["pickupLat"] = 123.0
				return r.expect(ctx, http.MethodPost, "/api/trips", body, http.StatusBadRequest)
			},
		},
		{
			Name: "Trips: unknown cab type -> 404",
			Run: func(ctx context.Context, r *Runner) Result {
				body := r.tripBody()
				body["cabTypeId"] = "no-such-cab"
				return r.expect(ctx, http.MethodPost, "/api/trips", body, http.StatusNotFound)
			},
		},
		{
			Name: "Trips: create",
			Run: func(ctx context.Context, r *Runner) Result {
				var trip tripView
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips", r.tripBody(), r.token(0), &trip)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code != http.StatusCreated {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
				}
				r.tripID = trip.ID
				return Result{Status: statusPass, Latency: latency, Note: "status=" + trip.Status}
			},
		},
		{
			Name: "Trips: other rider -> 403",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip created"}
				}
				code, latency, err := r.call(ctx, http.MethodGet, "/api/trips/"+r.tripID, nil, r.token(1), nil)
				return judge(code, latency, err, http.StatusForbidden)
			},
		},
		{
			Name: "Trips: complete",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip created"}
				}
				var trip tripView
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/"+r.tripID+"/complete", nil, r.token(0), &trip)
				if err != nil {
					return Result{Status: statusFail, Note: err.Error()}
				}
				if code == http.StatusConflict {
					return Result{Status: statusSkip, Latency: latency, Note: "trip still pending, no driver available"}
				}
				if code != http.StatusOK || trip.Status != "completed" {
					return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d trip=%s", code, trip.Status)}
				}
				return Result{Status: statusPass, Latency: latency}
			},
		},
		{
			Name: "Trips: completed cannot be cancelled -> 409",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.tripID == "" {
					return Result{Status: statusSkip, Note: "no trip created"}
				}
				code, latency, err := r.call(ctx, http.MethodPost, "/api/trips/"+r.tripID+"/cancel", nil, r.token(0), nil)
				if err == nil && code == http.StatusOK {
					return Result{Status: statusSkip, Latency: latency, Note: "trip was still active"}
				}
				return judge(code, latency, err, http.StatusConflict)
			},
		},
		{
			Name: "Concurrency: simultaneous requests never share a driver",
			Run:  concurrentCreates,
		},
		{
			Name: "Consistency: no driver on two active trips",
			Run:  checkDriverExclusivity,
		},
		{
			Name: "Consistency: Redis index holds only available drivers",
			Run:  checkIndex,
		},
		{
			Name: "Perf: nearby query throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodGet, fmt.Sprintf("/api/drivers/nearby?lat=%v&lng=%v", benchPickup[0], benchPickup[1]), nil)
			},
		},
		{
			Name: "Perf: estimate throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, http.MethodPost, "/api/trips/estimate", r.tripBody())
			},
		},
	}
}

type tripView struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	DriverID *string `json:"driverId"`
}

func (r *Runner) token(n int) string {
	return fmt.Sprintf("Bearer %s-%d", r.cfg.TokenPrefix, n)
}

func (r *Runner) tripBody() map[string]any {
	return map[string]any{
		"pickupLat":          benchPickup[0],
		"pickupLng":          benchPickup[1],
		"destinationLat":     benchDestination[0],
		"destinationLng":     benchDestination[1],
		"pickupAddress":      "Lower Manhattan",
		"destinationAddress": "Times Square",
		"cabTypeId":          r.cabTypeID,
	}
}

// call sends one request and decodes a JSON body into out when out is non-nil.
func (r *Runner) call(ctx context.Context, method, path string, body any, auth string, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, fmt.Errorf("decode: %w", err)
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func (r *Runner) expect(ctx context.Context, method, path string, body any, want int) Result {
	code, latency, err := r.call(ctx, method, path, body, r.token(0), nil)
	return judge(code, latency, err, want)
}

func judge(code int, latency time.Duration, err error, want int) Result {
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", code, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}
}

func statusCase(name, method, path string, body any, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			auth := r.token(0)
			if want == http.StatusUnauthorized {
				auth = ""
			}
			code, latency, err := r.call(ctx, method, path, body, auth, nil)
			return judge(code, latency, err, want)
		},
	}
}

type createdTrip struct {
	rider int
	id    string
}

func concurrentCreates(ctx context.Context, r *Runner) Result {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		drivers = make(map[string]int)
		failed  int
		trips   []createdTrip
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(rider int) {
			defer wg.Done()
			var trip tripView
			code, _, err := r.call(ctx, http.MethodPost, "/api/trips", r.tripBody(), r.token(rider), &trip)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || code != http.StatusCreated {
				failed++
				return
			}
			trips = append(trips, createdTrip{rider: rider, id: trip.ID})
			if trip.DriverID != nil {
				drivers[*trip.DriverID]++
			}
		}(100 + i)
	}
	wg.Wait()

	// Free the drivers again so later runs still find a fleet.
	for _, t := range trips {
		_, _, _ = r.call(ctx, http.MethodPost, "/api/trips/"+t.id+"/cancel", nil, r.token(t.rider), nil)
	}

	for id, n := range drivers {
		if n > 1 {
			return Result{Status: statusFail, Note: fmt.Sprintf("driver %s assigned %d times", id, n)}
		}
	}
	if failed > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("failed requests=%d", failed)}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("confirmed=%d pending=%d", len(drivers), len(trips)-len(drivers))}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
}

func checkDriverExclusivity(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "dsn not configured"}
	}
	var shared int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT driver_id FROM trips
			WHERE driver_id IS NOT NULL AND status IN ('pending', 'confirmed', 'in_progress')
			GROUP BY driver_id HAVING COUNT(*) > 1
		) s`).Scan(&shared)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if shared > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("drivers on several active trips=%d", shared)}
	}

	var availableButBusy int
	err = r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM drivers d
		JOIN trips t ON t.driver_id = d.id
		WHERE d.is_available AND t.status IN ('confirmed', 'in_progress')`).Scan(&availableButBusy)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if availableButBusy > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("available drivers on active trips=%d", availableButBusy)}
	}
	return Result{Status: statusPass}
}

func checkIndex(ctx context.Context, r *Runner) Result {
	if r.redis == nil || r.db == nil {
		return Result{Status: statusSkip, Note: "needs both redis and dsn"}
	}
	members, err := r.redis.ZRange(ctx, driver.IndexKey, 0, -1).Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	var stale int64
	for _, id := range members {
		var available bool
		err := r.db.QueryRow(ctx, "SELECT is_available FROM drivers WHERE id=$1", id).Scan(&available)
		if err != nil || !available {
			stale++
		}
	}
	if stale > 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("stale index entries=%d of %d", stale, len(members))}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("indexed=%d", len(members))}
}

func perfLoad(ctx context.Context, r *Runner, method, path string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.call(ctx, method, path, payload, r.token(0), nil)
				if err != nil || code >= 500 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}
