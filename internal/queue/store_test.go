package queue_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"videoflix/internal/queue"
	"videoflix/internal/testsupport"
)

func standardPolicy() queue.RetryPolicy {
	return queue.DefaultRetryPolicy()
}

func TestEnqueueAndClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.KindTranscode, "transcode:/media/videos/clip.mp4", []byte(`{"source_path":"/media/videos/clip.mp4"}`), standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if job.ID == 0 || job.Status != queue.StatusQueued || job.Attempts != 0 || job.MaxAttempts != 3 {
		t.Fatalf("unexpected enqueued job: %+v", job)
	}
	if len(job.Backoff) != 3 || job.Backoff[1] != 30*time.Second {
		t.Fatalf("expected policy backoff persisted, got %v", job.Backoff)
	}

	claimed, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != job.ID {
		t.Fatalf("expected to claim job %d, got %+v", job.ID, claimed)
	}
	if claimed.Status != queue.StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed state: %+v", claimed)
	}
	if claimed.LastHeartbeat == nil {
		t.Fatal("expected claim to set heartbeat")
	}
	if string(claimed.Payload) != `{"source_path":"/media/videos/clip.mp4"}` {
		t.Fatalf("payload not preserved: %s", claimed.Payload)
	}

	again, err := store.Claim(ctx)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if again != nil {
		t.Fatalf("expected no further job, got %+v", again)
	}

	if err := store.Complete(ctx, job.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	done, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if done.Status != queue.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", done.Status)
	}
	if err := store.Complete(ctx, job.ID); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning completing twice, got %v", err)
	}
}

func TestEnqueueRequiresKindAndKey(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.Enqueue(context.Background(), "", "k", nil, standardPolicy()); err == nil {
		t.Fatal("expected error without kind")
	}
	if _, err := store.Enqueue(context.Background(), queue.KindCleanup, " ", nil, standardPolicy()); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestEnqueueReusesWaitingJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := store.Enqueue(ctx, queue.KindCleanup, "cleanup:/a.mp4", nil, standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := store.Enqueue(ctx, queue.KindCleanup, "cleanup:/a.mp4", nil, standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected waiting job to be reused, got %d and %d", first.ID, second.ID)
	}
	other, err := store.Enqueue(ctx, queue.KindTranscode, "cleanup:/a.mp4", nil, standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different kinds must not be merged")
	}
	if string(first.Payload) != "{}" {
		t.Fatalf("expected empty object payload, got %q", first.Payload)
	}
}

func TestFailFollowsBackoffScheduleAndStopsAfterMaxAttempts(t *testing.T) {
	clock := testsupport.NewClock()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), queue.WithClock(clock.Now))
	ctx := context.Background()

	job, err := store.Enqueue(ctx, queue.KindTranscode, "transcode:/clip.mp4", nil, standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waits := []time.Duration{10 * time.Second, 30 * time.Second}
	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := store.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim attempt %d: %v", attempt, err)
		}
		if claimed == nil || claimed.Attempts != attempt {
			t.Fatalf("attempt %d: unexpected claim %+v", attempt, claimed)
		}
		failed, err := store.Fail(ctx, job.ID, "ffmpeg exited 1", true)
		if err != nil {
			t.Fatalf("Fail attempt %d: %v", attempt, err)
		}
		if attempt == 3 {
			if failed.Status != queue.StatusFailed {
				t.Fatalf("expected failed after third attempt, got %s", failed.Status)
			}
			break
		}
		wait := waits[attempt-1]
		if failed.Status != queue.StatusQueued {
			t.Fatalf("attempt %d: expected requeue, got %s", attempt, failed.Status)
		}
		if got := failed.NextAttemptAt.Sub(clock.Now()); got != wait {
			t.Fatalf("attempt %d: expected %s backoff, got %s", attempt, wait, got)
		}

		clock.Advance(wait - time.Second)
		if early, err := store.Claim(ctx); err != nil || early != nil {
			t.Fatalf("attempt %d: job claimable before backoff elapsed (%+v, %v)", attempt, early, err)
		}
		clock.Advance(time.Second)
	}

	clock.Advance(time.Hour)
	if fourth, err := store.Claim(ctx); err != nil || fourth != nil {
		t.Fatalf("expected no fourth attempt, got %+v, %v", fourth, err)
	}
	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Attempts != 3 || final.LastError != "ffmpeg exited 1" {
		t.Fatalf("unexpected final job: %+v", final)
	}
}

func TestRaisedMaxAttemptsReachesLastBackoff(t *testing.T) {
	clock := testsupport.NewClock()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), queue.WithClock(clock.Now))
	ctx := context.Background()

	policy := standardPolicy()
	policy.MaxAttempts = 4
	job, err := store.Enqueue(ctx, queue.KindTranscode, "transcode:/clip.mp4", nil, policy)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	var failed *queue.Job
	for attempt := 1; attempt <= 3; attempt++ {
		clock.Advance(time.Minute)
		if claimed, err := store.Claim(ctx); err != nil || claimed == nil {
			t.Fatalf("Claim attempt %d: %+v %v", attempt, claimed, err)
		}
		if failed, err = store.Fail(ctx, job.ID, "ffmpeg exited 1", true); err != nil {
			t.Fatalf("Fail attempt %d: %v", attempt, err)
		}
	}
	if failed.Status != queue.StatusQueued {
		t.Fatalf("expected a fourth run to be scheduled, got %s", failed.Status)
	}
	if got := failed.NextAttemptAt.Sub(clock.Now()); got != 60*time.Second {
		t.Fatalf("expected 60s before the fourth run, got %s", got)
	}
}

func TestFailNonRetryableIsTerminal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/x.mp4", nil, standardPolicy())
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	failed, err := store.Fail(ctx, job.ID, "bad payload", false)
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if failed.Status != queue.StatusFailed || failed.Attempts != 1 {
		t.Fatalf("expected immediate failure, got %+v", failed)
	}
	if _, err := store.Fail(ctx, job.ID, "again", true); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestFailTruncatesLongErrorOnRuneBoundary(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/x.mp4", nil, standardPolicy())
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	stderr := "x" + strings.Repeat("é", 3000)
	failed, err := store.Fail(ctx, job.ID, stderr, false)
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if !utf8.ValidString(failed.LastError) {
		t.Fatal("stored error is not valid UTF-8")
	}
	if len(failed.LastError) >= len(stderr) || !strings.HasSuffix(failed.LastError, "é…") {
		t.Fatalf("expected truncated error, got %d bytes", len(failed.LastError))
	}
}

func TestClaimFiltersByKind(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Enqueue(ctx, queue.KindTranscode, "transcode:/a.mp4", nil, standardPolicy()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	cleanup, err := store.Enqueue(ctx, queue.KindCleanup, "cleanup:/b.mp4", nil, standardPolicy())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := store.Claim(ctx, queue.KindCleanup)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed == nil || claimed.ID != cleanup.ID {
		t.Fatalf("expected cleanup job, got %+v", claimed)
	}
}

func TestReclaimStaleDoesNotConsumeAttempt(t *testing.T) {
	clock := testsupport.NewClock()
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t), queue.WithClock(clock.Now))
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/s.mp4", nil, standardPolicy())
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	clock.Advance(time.Minute)
	if n, err := store.ReclaimStale(ctx, clock.Now().Add(-2*time.Minute)); err != nil || n != 0 {
		t.Fatalf("expected fresh heartbeat to survive, got %d, %v", n, err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("UpdateHeartbeat: %v", err)
	}
	clock.Advance(5 * time.Minute)

	n, err := store.ReclaimStale(ctx, clock.Now().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one reclaimed job, got %d", n)
	}
	reclaimed, _ := store.GetByID(ctx, job.ID)
	if reclaimed.Status != queue.StatusQueued || reclaimed.Attempts != 0 || reclaimed.LastHeartbeat != nil {
		t.Fatalf("unexpected reclaimed job: %+v", reclaimed)
	}
}

func TestReleaseReturnsJobWithoutConsumingAttempt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, _ := store.Enqueue(ctx, queue.KindCleanup, "cleanup:/s.mp4", nil, standardPolicy())
	if _, err := store.Claim(ctx); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := store.Release(ctx, job.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	released, _ := store.GetByID(ctx, job.ID)
	if released.Status != queue.StatusQueued || released.Attempts != 0 {
		t.Fatalf("unexpected released job: %+v", released)
	}
	if err := store.Release(ctx, job.ID); !errors.Is(err, queue.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for queued job, got %v", err)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/a.mp4", nil, queue.RetryPolicy{MaxAttempts: 1})
	b, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/b.mp4", nil, queue.RetryPolicy{MaxAttempts: 1})
	for _, id := range []int64{a.ID, b.ID} {
		if _, err := store.Claim(ctx); err != nil {
			t.Fatalf("Claim: %v", err)
		}
		if _, err := store.Fail(ctx, id, "boom", true); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	n, err := store.RetryFailed(ctx, a.ID)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed(a) = %d, %v", n, err)
	}
	retried, _ := store.GetByID(ctx, a.ID)
	if retried.Status != queue.StatusQueued || retried.Attempts != 0 || retried.LastError != "" {
		t.Fatalf("unexpected retried job: %+v", retried)
	}
	still, _ := store.GetByID(ctx, b.ID)
	if still.Status != queue.StatusFailed {
		t.Fatalf("expected b to remain failed, got %s", still.Status)
	}
	if n, err := store.RetryFailed(ctx); err != nil || n != 1 {
		t.Fatalf("RetryFailed(all) = %d, %v", n, err)
	}
}

func TestStatsListAndClear(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ok, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/ok.mp4", nil, standardPolicy())
	bad, _ := store.Enqueue(ctx, queue.KindTranscode, "transcode:/bad.mp4", nil, standardPolicy())
	if _, err := store.Enqueue(ctx, queue.KindCleanup, "cleanup:/gone.mp4", nil, standardPolicy()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := store.Claim(ctx, queue.KindTranscode); err != nil {
		t.Fatal(err)
	}
	if err := store.Complete(ctx, ok.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := store.Claim(ctx, queue.KindTranscode); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Fail(ctx, bad.ID, "boom", false); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Queued != 1 || health.Succeeded != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != bad.ID {
		t.Fatalf("unexpected failed list: %+v", failed)
	}
	all, _ := store.List(ctx)
	if len(all) != 3 || all[0].ID != ok.ID {
		t.Fatalf("expected jobs ordered by id, got %d", len(all))
	}

	if n, err := store.ClearFailed(ctx); err != nil || n != 1 {
		t.Fatalf("ClearFailed = %d, %v", n, err)
	}
	if n, err := store.ClearSucceeded(ctx); err != nil || n != 1 {
		t.Fatalf("ClearSucceeded = %d, %v", n, err)
	}
	stats, _ := store.Stats(ctx)
	if stats[queue.StatusQueued] != 1 || len(stats) != 1 {
		t.Fatalf("unexpected stats after clear: %v", stats)
	}
}

func TestCheckHealthReportsSchema(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingColumns) != 0 || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected schema health: %+v", health)
	}
}

func TestReopenKeepsJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Enqueue(context.Background(), queue.KindCleanup, "cleanup:/r.mp4", nil, standardPolicy()); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	_ = store.Close()

	reopened := testsupport.MustOpenStore(t, cfg)
	jobs, err := reopened.List(context.Background())
	if err != nil || len(jobs) != 1 {
		t.Fatalf("expected persisted job, got %d, %v", len(jobs), err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := standardPolicy()
	cases := map[int]time.Duration{0: 0, 1: 10 * time.Second, 2: 30 * time.Second, 3: 60 * time.Second, 7: 60 * time.Second}
	for attempt, want := range cases {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %s, want %s", attempt, got, want)
		}
	}
	if (queue.RetryPolicy{}).Delay(1) != 0 {
		t.Error("expected zero delay for empty backoff")
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := queue.ParseStatus(" Failed "); !ok || st != queue.StatusFailed {
		t.Fatalf("ParseStatus = %q, %v", st, ok)
	}
	if _, ok := queue.ParseStatus("pending"); ok {
		t.Fatal("unexpected status accepted")
	}
}
