package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type refresh struct {
	Date    string `json:"date"`
	Horizon int    `json:"horizon"`
}

func TestParsePayloadRaw(t *testing.T) {
	got, err := ParsePayload[refresh](json.RawMessage(`{"date":"2024-06-02","horizon":24}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Date != "2024-06-02" || got.Horizon != 24 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestParsePayloadInProcess(t *testing.T) {
	in := refresh{Date: "2024-06-02"}
	got, err := ParsePayload[refresh](in)
	if err != nil || got.Date != in.Date {
		t.Fatalf("value payload: %+v %v", got, err)
	}
	got, err = ParsePayload[refresh](map[string]interface{}{"horizon": 48})
	if err != nil || got.Horizon != 48 {
		t.Fatalf("map payload: %+v %v", got, err)
	}
}

func TestParsePayloadRejects(t *testing.T) {
	if _, err := ParsePayload[refresh](42); err == nil {
		t.Fatalf("expected error for int payload")
	}
	if _, err := ParsePayload[refresh](json.RawMessage(`{`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
}

type recordJob struct {
	got chan *refresh
}

func (j recordJob) Name() string { return "record" }
func (j recordJob) Type() string { return "test.record" }

func (j recordJob) Handle(_ context.Context, payload interface{}) error {
	p, err := ParsePayload[refresh](payload)
	if err != nil {
		return err
	}
	j.got <- p
	return nil
}

func TestInlineQueueDispatches(t *testing.T) {
	q := NewInlineQueue(nil, time.Second)
	job := recordJob{got: make(chan *refresh, 1)}
	q.RegisterJob(job)

	if err := q.Enqueue(context.Background(), "test.record", refresh{Date: "2024-06-02"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case p := <-job.got:
		if p.Date != "2024-06-02" {
			t.Fatalf("unexpected payload %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatalf("job did not run")
	}

	if err := q.Enqueue(context.Background(), "unknown", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := q.Enqueue(context.Background(), "test.record", refresh{}); err == nil {
		t.Fatalf("expected error after stop")
	}
}
