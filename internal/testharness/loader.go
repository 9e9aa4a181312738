package testharness

import (
	"context"
	"strings"
	"sync"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/loader"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

// BlockingGate holds a scripted step until Release is called.
type BlockingGate struct {
	once sync.Once
	ch   chan struct{}
}

func NewBlockingGate() *BlockingGate {
	return &BlockingGate{ch: make(chan struct{})}
}

func (g *BlockingGate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *BlockingGate) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		close(g.ch)
	})
}

// LoadStep is one scripted outcome of ScriptedLoader.Load.
type LoadStep struct {
	Records []models.DatasetRecord
	Err     error
	Gate    *BlockingGate
}

// ScriptedLoader replays steps in order. Once the script is exhausted the
// last step repeats.
type ScriptedLoader struct {
	mu    sync.Mutex
	steps []LoadStep
	calls int
}

func NewScriptedLoader(steps ...LoadStep) *ScriptedLoader {
	return &ScriptedLoader{steps: steps}
}

func (l *ScriptedLoader) Load(ctx context.Context) (*loader.Result, error) {
	l.mu.Lock()
	idx := l.calls
	l.calls++
	if idx >= len(l.steps) {
		idx = len(l.steps) - 1
	}
	var step LoadStep
	if idx >= 0 {
		step = l.steps[idx]
	}
	l.mu.Unlock()

	if err := step.Gate.Wait(ctx); err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return &loader.Result{Records: append([]models.DatasetRecord(nil), step.Records...)}, nil
}

func (l *ScriptedLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// Records returns n valid records with country codes AA, AB and so on.
func Records(n int) []models.DatasetRecord {
	regions := []string{"Europe", "Asia", "North America"}
	out := make([]models.DatasetRecord, 0, n)
	for i := 0; i < n; i++ {
		code := string(rune('A'+i/26)) + string(rune('A'+i%26))
		id := strings.ToLower(code)
		out = append(out, models.DatasetRecord{
			ID:              id,
			CountryName:     "Country " + code,
			CountryCode:     code,
			PostalCodeCount: int64(1000 + i),
			Region:          regions[i%len(regions)],
			Status:          models.DatasetStatusActive,
			SampleFileName:  id + "-postal-codes-sample.csv",
		})
	}
	return out
}
