package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
	"github.com/julianstephens/affirm/internal/pool"
	"github.com/julianstephens/affirm/internal/share"
	"github.com/julianstephens/affirm/internal/storage"
)

type fakeReminders struct {
	mu       sync.Mutex
	starts   int
	restarts int
	stops    int
}

func (f *fakeReminders) Start(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
}

func (f *fakeReminders) Restart(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
}

func (f *fakeReminders) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

type fakeAdvisor struct {
	got []models.ReminderConfig
	err error
}

func (f *fakeAdvisor) UpdateReminders(ctx context.Context, cfg models.ReminderConfig) error {
	f.got = append(f.got, cfg)
	return f.err
}

type fakeSharer struct {
	text string
}

func (f *fakeSharer) Share(ctx context.Context, text string) (share.Method, error) {
	f.text = text
	return share.MethodClipboard, nil
}

var testDataset = models.Dataset{
	Categories: map[string]string{"faith": "Faith", "love": "Love"},
	Affirmations: []models.Affirmation{
		{Text: "faith 1", Category: "faith"},
		{Text: "faith 2", Category: "faith"},
		{Text: "love 1", Category: "love"},
	},
}

type fixture struct {
	ctrl      *Controller
	prefs     *storage.Preferences
	reminders *fakeReminders
	advisor   *fakeAdvisor
	sharer    *fakeSharer
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "affirm.json"))
	require.NoError(t, store.Init())
	t.Cleanup(func() { store.Close() })

	f := fixture{
		prefs:     storage.NewPreferences(store),
		reminders: &fakeReminders{},
		advisor:   &fakeAdvisor{},
		sharer:    &fakeSharer{},
	}
	f.ctrl = New(Deps{
		Dataset:   testDataset,
		Prefs:     f.prefs,
		Selector:  pool.NewSelector(rand.New(rand.NewPCG(1, 1))),
		Reminders: f.reminders,
		Advisor:   f.advisor,
		Sharer:    f.sharer,
	})
	return f
}

func TestNext_UpdatesState(t *testing.T) {
	f := setup(t)
	assert.Equal(t, constants.CategoryAll, f.ctrl.State().Category)
	assert.Empty(t, f.ctrl.CurrentText())

	first := f.ctrl.Next()
	for i := 0; i < 50; i++ {
		next := f.ctrl.Next()
		require.NotEqual(t, first, next)
		first = next
	}
	assert.Equal(t, first.Text, f.ctrl.CurrentText())
}

func TestState_IsACopy(t *testing.T) {
	f := setup(t)
	f.ctrl.Next()
	s := f.ctrl.State()
	s.Current.Text = "mutated"
	assert.NotEqual(t, "mutated", f.ctrl.CurrentText())
}

func TestSetCategory(t *testing.T) {
	f := setup(t)

	a, err := f.ctrl.SetCategory("love")
	require.NoError(t, err)
	assert.Equal(t, "love 1", a.Text)
	assert.Equal(t, "love", f.ctrl.State().Category)

	_, err = f.ctrl.SetCategory("nope")
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.Equal(t, "love", f.ctrl.State().Category)

	// Personal with no entries falls back to the built-ins.
	a, err = f.ctrl.SetCategory(constants.CategoryPersonal)
	require.NoError(t, err)
	assert.NotEqual(t, constants.CategoryPersonal, a.Category)

	_, err = f.ctrl.AddPersonal("mine")
	require.NoError(t, err)
	a = f.ctrl.Next()
	assert.Equal(t, models.Affirmation{Text: "mine", Category: constants.CategoryPersonal}, a)
}

func TestEnabledCategories(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ctrl.SetEnabledCategories([]string{"faith"}))
	for i := 0; i < 20; i++ {
		assert.Equal(t, "faith", f.ctrl.Next().Category)
	}

	assert.True(t, errors.Is(f.ctrl.SetEnabledCategories([]string{"bogus"}), ErrUnknownCategory))

	require.NoError(t, f.ctrl.SetEnabledCategories(nil))
	assert.True(t, f.ctrl.EnabledCategories().All())
}

func TestCategories(t *testing.T) {
	f := setup(t)
	assert.Equal(t, []string{"all", "faith", "love", "personal"}, f.ctrl.Categories())
	assert.Equal(t, "All", f.ctrl.CategoryName("all"))
	assert.Equal(t, "Personal", f.ctrl.CategoryName("personal"))
	assert.Equal(t, "Faith", f.ctrl.CategoryName("faith"))
}

func TestPersonal(t *testing.T) {
	f := setup(t)
	_, err := f.ctrl.AddPersonal("  one  ")
	require.NoError(t, err)
	_, err = f.ctrl.AddPersonal("two")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, f.ctrl.Personal())

	removed, err := f.ctrl.RemovePersonal(0)
	require.NoError(t, err)
	assert.Equal(t, "one", removed)
	assert.Equal(t, []string{"two"}, f.ctrl.Personal())
}

func TestSaveReminders(t *testing.T) {
	f := setup(t)
	cfg := models.DefaultReminderConfig()
	cfg.Noon.Enabled = true

	require.NoError(t, f.ctrl.SaveReminders(context.Background(), cfg))
	assert.Equal(t, cfg, f.prefs.GetReminderConfig())
	assert.Equal(t, 1, f.reminders.restarts)
	require.Len(t, f.advisor.got, 1)
	assert.True(t, f.advisor.got[0].Noon.Enabled)

	bad := cfg
	bad.Noon.Time = "25:99"
	assert.Error(t, f.ctrl.SaveReminders(context.Background(), bad))
	assert.Equal(t, 1, f.reminders.restarts)
}

func TestSaveReminders_AdvisorFailureIgnored(t *testing.T) {
	f := setup(t)
	f.advisor.err = errors.New("agent not running")
	assert.NoError(t, f.ctrl.SaveReminders(context.Background(), models.DefaultReminderConfig()))
}

func TestSetPermission(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ctrl.SetPermission(context.Background(), constants.PermissionDenied))
	assert.Equal(t, constants.PermissionDenied, f.ctrl.Permission())
	assert.Empty(t, f.advisor.got)

	require.NoError(t, f.ctrl.SetPermission(context.Background(), constants.PermissionGranted))
	assert.Equal(t, constants.PermissionGranted, f.ctrl.Permission())
	assert.Len(t, f.advisor.got, 1)
	assert.Equal(t, 1, f.reminders.restarts)
}

func TestShare(t *testing.T) {
	f := setup(t)
	f.ctrl.Next()
	current := f.ctrl.CurrentText()

	method, err := f.ctrl.Share(context.Background())
	require.NoError(t, err)
	assert.Equal(t, share.MethodClipboard, method)
	assert.Equal(t, `"`+current+`" - from Affirmations`, f.sharer.text)
}

func TestLifecycle(t *testing.T) {
	f := setup(t)
	f.ctrl.StartReminders(context.Background())
	assert.Equal(t, 1, f.reminders.starts)

	require.NoError(t, f.ctrl.Close())
	require.NoError(t, f.ctrl.Close())
	assert.Equal(t, 1, f.reminders.stops)

	// A closed controller does not restart the poll.
	f.ctrl.StartReminders(context.Background())
	require.NoError(t, f.ctrl.SaveReminders(context.Background(), models.DefaultReminderConfig()))
	assert.Equal(t, 1, f.reminders.starts)
	assert.Equal(t, 0, f.reminders.restarts)
}

func TestNew_EmptyDatasetUsesDefault(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "affirm.json"))
	require.NoError(t, store.Init())
	ctrl := New(Deps{Prefs: storage.NewPreferences(store)})
	assert.NotEmpty(t, ctrl.Next().Text)
	assert.NotEmpty(t, ctrl.RandomText())
}
