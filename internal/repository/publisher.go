package repository

import (
	"context"
	"errors"
	"time"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	pkgkafka "GridCast/pkg/kafka"
)

// ForecastEvent is the message written to the forecast topic.
type ForecastEvent struct {
	ID          string      `json:"id"`
	Mode        models.Mode `json:"mode"`
	Start       time.Time   `json:"start"`
	Horizon     int         `json:"horizon"`
	Values      []float64   `json:"values"`
	Lower       []float64   `json:"lower"`
	Upper       []float64   `json:"upper"`
	Unit        string      `json:"unit"`
	Model       string      `json:"model_version"`
	GeneratedAt time.Time   `json:"generated_at"`
}

func NewForecastEvent(res *models.ForecastResult) ForecastEvent {
	ev := ForecastEvent{
		ID:          res.Metadata.ID,
		Mode:        res.Metadata.Mode,
		Start:       res.Start,
		Horizon:     res.Horizon,
		Values:      make([]float64, len(res.Points)),
		Lower:       make([]float64, len(res.Points)),
		Upper:       make([]float64, len(res.Points)),
		Unit:        res.Metadata.Unit,
		Model:       res.Metadata.ModelVersion,
		GeneratedAt: res.Metadata.GeneratedAt,
	}
	for i, p := range res.Points {
		ev.Values[i] = p.Combined
		ev.Lower[i] = p.ConfidenceLower
		ev.Upper[i] = p.ConfidenceUpper
	}
	return ev
}

// KafkaPublisher writes forecast events keyed by start hour, so updates
// for one start land on one partition in order.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, res *models.ForecastResult) error {
	key := []byte(res.Start.UTC().Format(time.RFC3339))
	return p.producer.Publish(ctx, p.topic, key, NewForecastEvent(res))
}

// Close leaves the producer open; it is shared with log shipping and
// closed by its owner.
func (p *KafkaPublisher) Close() error { return nil }

// Fanout sends each forecast to every publisher and joins the errors.
type Fanout []domrepo.ForecastPublisher

func (f Fanout) PublishForecast(ctx context.Context, res *models.ForecastResult) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishForecast(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

var (
	_ domrepo.ForecastPublisher = (*KafkaPublisher)(nil)
	_ domrepo.ForecastPublisher = Fanout(nil)
)
