package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/rccar_interface/drive"
	"go.uber.org/zap"
)

func TestStatusFields(t *testing.T) {
	got := statusFields(drive.Status{Preset: drive.Fast, Magnitude: 255, Left: -255, Right: 255})
	want := map[string]interface{}{
		"preset":    "fast",
		"magnitude": 255,
		"left":      -255,
		"right":     255,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("unexpected fields: got(-)/want(+):\n%s", diff)
	}
}

func TestStatusChannel(t *testing.T) {
	if StatusChannel != "car status" {
		t.Errorf("StatusChannel = %q", StatusChannel)
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSendStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, client := newRedis(t)

	sub := client.Subscribe(ctx, StatusChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	p := NewPublisher(ctx, zap.NewNop().Sugar(), client)
	if err := p.SendStatus(ctx, drive.Status{Preset: drive.Slow, Magnitude: 100, Left: 100, Right: -100}); err != nil {
		t.Fatal(err)
	}

	got, err := client.HGetAll(ctx, StatusKey).Result()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"preset": "slow", "magnitude": "100", "left": "100", "right": "-100"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("unexpected hash: got(-)/want(+):\n%s", diff)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Channel != StatusChannel || msg.Payload != "slow" {
		t.Errorf("published %q on %q, want %q on %q", msg.Payload, msg.Channel, "slow", StatusChannel)
	}
}

func TestStatusCallbackAndFinish(t *testing.T) {
	_, client := newRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPublisher(ctx, zap.NewNop().Sugar(), client)
	cb := p.StatusCallback()
	cb(drive.Status{Preset: drive.Normal, Magnitude: 180, Left: 180, Right: 180})

	deadline := time.Now().Add(2 * time.Second)
	for {
		left, _ := client.HGet(context.Background(), StatusKey, "left").Result()
		if left == "180" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never reached redis; left = %q", left)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Once the publisher's context is done, Finish still records the final state.
	cancel()
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer finishCancel()
	if err := p.Finish(finishCtx, drive.Status{Preset: drive.Normal, Magnitude: 180}); err != nil {
		t.Fatal(err)
	}
	got, err := client.HGetAll(context.Background(), StatusKey).Result()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"preset": "normal", "magnitude": "180", "left": "0", "right": "0"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("unexpected final hash: got(-)/want(+):\n%s", diff)
	}
}

func TestSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, client := newRedis(t)

	got := make(chan string, 4)
	if err := Subscribe(ctx, zap.NewNop().Sugar(), client, func(text string) { got <- text }); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"fast-speed", "M:10,-10"} {
		if err := client.Publish(ctx, CommandChannel, text).Err(); err != nil {
			t.Fatal(err)
		}
	}
	var texts []string
	for len(texts) < 2 {
		select {
		case text := <-got:
			texts = append(texts, text)
		case <-ctx.Done():
			t.Fatalf("received only %q", texts)
		}
	}
	if diff := cmp.Diff(texts, []string{"fast-speed", "M:10,-10"}); diff != "" {
		t.Errorf("unexpected commands: got(-)/want(+):\n%s", diff)
	}
}
