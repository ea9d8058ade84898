package gallery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prompt_gallery/internal/domain/models"
	"prompt_gallery/internal/lib/logger/handlers/slogdiscard"
	"prompt_gallery/internal/services/gallery"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLister struct {
	mock.Mock
}

func (m *MockLister) List(ctx context.Context) ([]models.Artifact, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]models.Artifact)
	return list, args.Error(1)
}

var base = time.Unix(1700000000, 0)

func artifact(name string, offset int) models.Artifact {
	return models.Artifact{
		Name:      name,
		Prompt:    "fox",
		Path:      "generated_images/" + name,
		CreatedAt: base.Add(time.Duration(offset) * time.Second),
	}
}

func TestMerge(t *testing.T) {
	snapshot := []models.Artifact{artifact("a_1.png", 1), artifact("b_2.png", 2)}

	t.Run("idempotent", func(t *testing.T) {
		once, added := gallery.Merge(nil, snapshot)
		assert.Equal(t, 2, added)

		twice, added := gallery.Merge(once, snapshot)
		assert.Zero(t, added)
		assert.Equal(t, once, twice)
	})

	t.Run("does not mutate input state", func(t *testing.T) {
		current := map[string]models.Artifact{}
		_, _ = gallery.Merge(current, snapshot)
		assert.Empty(t, current)
	})

	t.Run("commutative", func(t *testing.T) {
		other := []models.Artifact{artifact("b_2.png", 2), artifact("c_3.png", 3)}

		ab, _ := gallery.Merge(nil, snapshot)
		ab, _ = gallery.Merge(ab, other)

		ba, _ := gallery.Merge(nil, other)
		ba, _ = gallery.Merge(ba, snapshot)

		assert.Equal(t, ab, ba)
		assert.Len(t, ab, 3)
	})

	t.Run("no duplicate keys for equivalent paths", func(t *testing.T) {
		dup := artifact("a_1.png", 1)
		dup.Path = "generated_images/./a_1.png"

		state, _ := gallery.Merge(nil, []models.Artifact{artifact("a_1.png", 1), dup})
		assert.Len(t, state, 1)
	})

	t.Run("incoming selected flag is ignored", func(t *testing.T) {
		a := artifact("a_1.png", 1)
		a.Selected = true

		state, _ := gallery.Merge(nil, []models.Artifact{a})
		assert.False(t, state[a.Key()].Selected)
	})
}

func TestSorted(t *testing.T) {
	state, _ := gallery.Merge(nil, []models.Artifact{
		artifact("old_1.png", 1),
		artifact("new_3.png", 3),
		artifact("tie_b_2.png", 2),
		artifact("tie_a_2.png", 2),
	})

	sorted := gallery.Sorted(state)
	names := make([]string, 0, len(sorted))
	for _, a := range sorted {
		names = append(names, a.Name)
	}

	assert.Equal(t, []string{"new_3.png", "tie_a_2.png", "tie_b_2.png", "old_1.png"}, names)
}

func TestGallery_SelectionPreservedAcrossSnapshots(t *testing.T) {
	g := gallery.New(slogdiscard.NewDiscardLogger(), new(MockLister))

	a := artifact("a_1.png", 1)
	g.MergeSnapshot(g.Epoch(), []models.Artifact{a, artifact("b_2.png", 2)})

	selection, err := g.ToggleSelection(a.Path)
	require.NoError(t, err)
	assert.Equal(t, []models.SelectionEntry{{Filename: "a_1.png", Caption: "fox"}}, selection)

	// снимок не несет флаг выбора
	added, err := g.MergeSnapshot(g.Epoch(), []models.Artifact{a, artifact("c_3.png", 3)})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	for _, got := range g.Artifacts() {
		assert.Equal(t, got.Name == "a_1.png", got.Selected, got.Name)
	}
	assert.Len(t, g.Selection(), 1)
}

func TestGallery_ToggleSelection(t *testing.T) {
	g := gallery.New(slogdiscard.NewDiscardLogger(), new(MockLister))
	g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("a_1.png", 1)})

	t.Run("toggle twice deselects", func(t *testing.T) {
		_, err := g.ToggleSelection("generated_images/a_1.png")
		require.NoError(t, err)

		selection, err := g.ToggleSelection("generated_images/a_1.png")
		require.NoError(t, err)
		assert.Empty(t, selection)
	})

	t.Run("backend style path resolves by name", func(t *testing.T) {
		selection, err := g.ToggleSelection("/generated_images/a_1.png")
		require.NoError(t, err)
		assert.Len(t, selection, 1)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := g.ToggleSelection("generated_images/ghost.png")
		assert.ErrorIs(t, err, gallery.ErrUnknownArtifact)
	})
}

func TestGallery_MergeStreamed(t *testing.T) {
	ctx := context.Background()

	t.Run("relists the store", func(t *testing.T) {
		lister := new(MockLister)
		g := gallery.New(slogdiscard.NewDiscardLogger(), lister)

		lister.On("List", ctx).Return([]models.Artifact{artifact("a_1.png", 1)}, nil).Twice()

		added, err := g.MergeStreamed(ctx, "/generated_images/a_1.png")
		require.NoError(t, err)
		assert.Equal(t, 1, added)

		// повтор того же события ничего не меняет
		added, err = g.MergeStreamed(ctx, "/generated_images/a_1.png")
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, 1, g.Len())

		lister.AssertExpectations(t)
	})

	t.Run("lister failure leaves state untouched", func(t *testing.T) {
		lister := new(MockLister)
		g := gallery.New(slogdiscard.NewDiscardLogger(), lister)
		g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("a_1.png", 1)})

		lister.On("List", ctx).Return(nil, errors.New("disk gone")).Once()

		_, err := g.MergeStreamed(ctx, "x.png")
		assert.Error(t, err)
		assert.Equal(t, 1, g.Len())
	})
}

func TestGallery_ClearAndOnChange(t *testing.T) {
	g := gallery.New(slogdiscard.NewDiscardLogger(), new(MockLister))

	changes := 0
	g.SetOnChange(func() { changes++ })

	g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("a_1.png", 1)})
	g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("a_1.png", 1)})
	assert.Equal(t, 1, changes)

	g.Clear()
	assert.Zero(t, g.Len())
	assert.Equal(t, 2, changes)

	g.Clear()
	assert.Equal(t, 2, changes)
}

func TestGallery_ConcurrentMerges(t *testing.T) {
	g := gallery.New(slogdiscard.NewDiscardLogger(), new(MockLister))
	g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("a_1.png", 1)})
	_, err := g.ToggleSelection("generated_images/a_1.png")
	require.NoError(t, err)

	snapshot := []models.Artifact{artifact("a_1.png", 1), artifact("b_2.png", 2), artifact("c_3.png", 3)}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.MergeSnapshot(g.Epoch(), snapshot)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []models.SelectionEntry{{Filename: "a_1.png", Caption: "fox"}}, g.Selection())
}

func TestGallery_SnapshotOlderThanClearIsDropped(t *testing.T) {
	g := gallery.New(slogdiscard.NewDiscardLogger(), new(MockLister))

	epoch := g.Epoch()
	g.Clear()

	added, err := g.MergeSnapshot(epoch, []models.Artifact{artifact("a_1.png", 1)})
	assert.ErrorIs(t, err, gallery.ErrStaleSnapshot)
	assert.Zero(t, added)
	assert.Zero(t, g.Len())

	added, err = g.MergeSnapshot(g.Epoch(), []models.Artifact{artifact("b_2.png", 2)})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestGallery_MergeStreamedAcrossClear(t *testing.T) {
	ctx := context.Background()

	lister := new(MockLister)
	g := gallery.New(slogdiscard.NewDiscardLogger(), lister)

	listed := make(chan struct{})
	release := make(chan struct{})

	// хранилище прочитано до очистки, ответ приходит после нее
	lister.On("List", ctx).
		Run(func(mock.Arguments) {
			close(listed)
			<-release
		}).
		Return([]models.Artifact{artifact("a_1.png", 1), artifact("b_2.png", 2)}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := g.MergeStreamed(ctx, "/generated_images/a_1.png")
		done <- err
	}()

	<-listed
	g.Clear()
	close(release)

	require.NoError(t, <-done)
	assert.Zero(t, g.Len())
	lister.AssertExpectations(t)
}
