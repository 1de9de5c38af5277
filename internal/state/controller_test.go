package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
	pubmemory "github.com/JakeFAU/worldclock/internal/publisher/memory"
	"github.com/JakeFAU/worldclock/internal/state"
	"github.com/JakeFAU/worldclock/internal/state/memory"
)

type fixture struct {
	ctrl  *state.Controller
	store *memory.Store
	pub   *pubmemory.Publisher
	clock *quartz.Mock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat, err := city.NewCatalog(city.Defaults())
	require.NoError(t, err)

	clk := quartz.NewMock(t)
	clk.Set(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore()
	pub := pubmemory.New()
	ctrl, err := state.NewController(state.Config{
		Cities:    cat,
		Default:   state.ClockState{Language: locale.Korean, CityID: city.DefaultCityID},
		Store:     store,
		Publisher: pub,
		Topic:     "clock-state",
		Clock:     clk,
	})
	require.NoError(t, err)
	return fixture{ctrl: ctrl, store: store, pub: pub, clock: clk}
}

func TestSelectCityChangesState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.Equal(t, uint64(0), f.ctrl.Snapshot().Revision)

	changed, err := f.ctrl.SelectCity(ctx, "london")
	require.NoError(t, err)
	require.True(t, changed)

	snap := f.ctrl.Snapshot()
	require.Equal(t, "london", snap.CityID)
	require.Equal(t, locale.Korean, snap.Language)
	require.Equal(t, uint64(1), snap.Revision)

	saved, ok, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap.ClockState, saved)

	msgs := f.pub.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "clock-state", msgs[0].Topic)
	var evt state.ChangeEvent
	require.NoError(t, json.Unmarshal(msgs[0].Data, &evt))
	require.Equal(t, state.ChangeCity, evt.Kind)
	require.Equal(t, uint64(1), evt.Revision)
	require.Equal(t, "london", evt.State.CityID)
	require.True(t, evt.At.Equal(time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSelectSameCityIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ch, cancel := f.ctrl.Subscribe()
	defer cancel()

	changed, err := f.ctrl.SelectCity(context.Background(), city.DefaultCityID)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, uint64(0), f.ctrl.Snapshot().Revision)
	require.Zero(t, f.store.Saves())
	require.Empty(t, f.pub.Messages())
	select {
	case <-ch:
		t.Fatal("subscriber notified for a no-op selection")
	default:
	}
}

func TestSelectUnknownCity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	changed, err := f.ctrl.SelectCity(context.Background(), "atlantis")
	require.ErrorIs(t, err, state.ErrUnknownCity)
	require.False(t, changed)
	require.Equal(t, city.DefaultCityID, f.ctrl.Snapshot().CityID)
}

func TestToggleLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	snap := f.ctrl.ToggleLanguage(ctx)
	require.Equal(t, locale.English, snap.Language)
	require.Equal(t, uint64(1), snap.Revision)

	snap = f.ctrl.ToggleLanguage(ctx)
	require.Equal(t, locale.Korean, snap.Language)
	require.Equal(t, uint64(2), snap.Revision)
	require.Equal(t, 2, f.store.Saves())
}

func TestSetLanguage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	changed, err := f.ctrl.SetLanguage(ctx, locale.Korean)
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = f.ctrl.SetLanguage(ctx, locale.English)
	require.NoError(t, err)
	require.True(t, changed)

	_, err = f.ctrl.SetLanguage(ctx, locale.Language("fr"))
	require.ErrorIs(t, err, locale.ErrUnsupported)
	require.Equal(t, uint64(1), f.ctrl.Snapshot().Revision)
}

func TestSubscribeCoalesces(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ch, cancel := f.ctrl.Subscribe()

	_, err := f.ctrl.SelectCity(ctx, "tokyo")
	require.NoError(t, err)
	_, err = f.ctrl.SelectCity(ctx, "paris")
	require.NoError(t, err)

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single coalesced signal")
	default:
	}

	cancel()
	cancel()
	_, err = f.ctrl.SelectCity(ctx, "sydney")
	require.NoError(t, err)
	select {
	case <-ch:
		t.Fatal("cancelled subscriber still notified")
	default:
	}
}

func TestPublishFailureDoesNotFailChange(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.pub.FailWith(errors.New("unavailable"))

	changed, err := f.ctrl.SelectCity(context.Background(), "dubai")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "dubai", f.ctrl.Snapshot().CityID)
	require.Equal(t, 1, f.store.Saves())
}

func TestRestore(t *testing.T) {
	t.Parallel()

	cat, err := city.NewCatalog(city.Defaults())
	require.NoError(t, err)

	tests := []struct {
		name   string
		stored *state.ClockState
		want   state.ClockState
		rev    uint64
	}{
		{
			name: "nothing stored",
			want: state.ClockState{Language: locale.Korean, CityID: "seoul"},
		},
		{
			name:   "valid state",
			stored: &state.ClockState{Language: locale.English, CityID: "paris"},
			want:   state.ClockState{Language: locale.English, CityID: "paris"},
			rev:    1,
		},
		{
			name:   "city dropped from catalog",
			stored: &state.ClockState{Language: locale.English, CityID: "atlantis"},
			want:   state.ClockState{Language: locale.English, CityID: "seoul"},
			rev:    1,
		},
		{
			name:   "language unsupported",
			stored: &state.ClockState{Language: "fr", CityID: "seoul"},
			want:   state.ClockState{Language: locale.Korean, CityID: "seoul"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := memory.NewStore()
			if tt.stored != nil {
				require.NoError(t, store.Save(ctx, *tt.stored))
			}
			pub := pubmemory.New()
			core, _ := observer.New(zapcore.WarnLevel)
			ctrl, err := state.NewController(state.Config{
				Cities:    cat,
				Default:   state.ClockState{Language: locale.Korean, CityID: "seoul"},
				Store:     store,
				Publisher: pub,
				Logger:    zap.New(core),
			})
			require.NoError(t, err)
			require.NoError(t, ctrl.Restore(ctx))

			snap := ctrl.Snapshot()
			require.Equal(t, tt.want, snap.ClockState)
			require.Equal(t, tt.rev, snap.Revision)
			require.Empty(t, pub.Messages())
		})
	}
}

func TestRestoreLoadError(t *testing.T) {
	t.Parallel()

	cat, err := city.NewCatalog(city.Defaults())
	require.NoError(t, err)
	ctrl, err := state.NewController(state.Config{
		Cities:  cat,
		Default: state.ClockState{Language: locale.Korean, CityID: "seoul"},
		Store:   failingStore{},
	})
	require.NoError(t, err)
	require.ErrorContains(t, ctrl.Restore(context.Background()), "load clock state")
}

func TestNewControllerValidatesDefault(t *testing.T) {
	t.Parallel()

	cat, err := city.NewCatalog(city.Defaults())
	require.NoError(t, err)

	_, err = state.NewController(state.Config{Cities: cat, Default: state.ClockState{Language: "ko", CityID: "atlantis"}})
	require.ErrorIs(t, err, state.ErrUnknownCity)
	_, err = state.NewController(state.Config{Cities: cat, Default: state.ClockState{Language: "de", CityID: "seoul"}})
	require.ErrorIs(t, err, locale.ErrUnsupported)
	_, err = state.NewController(state.Config{Default: state.ClockState{Language: "ko", CityID: "seoul"}})
	require.Error(t, err)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.ctrl.ToggleLanguage(ctx)
			_ = f.ctrl.Snapshot()
		}()
	}
	wg.Wait()

	snap := f.ctrl.Snapshot()
	require.Equal(t, uint64(50), snap.Revision)
	require.Equal(t, locale.Korean, snap.Language)
	require.Len(t, f.pub.Messages(), 50)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (state.ClockState, bool, error) {
	return state.ClockState{}, false, errors.New("disk on fire")
}

func (failingStore) Save(context.Context, state.ClockState) error {
	return errors.New("disk on fire")
}
