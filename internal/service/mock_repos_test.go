package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/notify"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
	"github.com/paeinovis/RETRHO-administrative/internal/sheet"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
)

var errMockStorage = errors.New("mock storage failure")

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct {
	mu      sync.Mutex
	seq     int
	subs    map[string]*model.Submission
	archive []model.ArchivedSubmission
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{subs: make(map[string]*model.Submission)}
}

func (m *mockSubmissionRepo) Create(_ context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if sub.SubmissionID == "" {
		sub.SubmissionID = fmt.Sprintf("sub-%03d", m.seq)
	}
	if sub.Status == "" {
		sub.Status = model.SubmissionPending
	}
	sub.CreatedAt = time.Unix(int64(m.seq), 0)
	cp := *sub
	m.subs[sub.SubmissionID] = &cp
	return nil
}

func (m *mockSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSubmissionRepo) LatestStored(_ context.Context) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Submission
	for _, s := range m.subs {
		if s.Status != model.SubmissionStored {
			continue
		}
		if latest == nil || s.SubmittedAt.After(latest.SubmittedAt) ||
			(s.SubmittedAt.Equal(latest.SubmittedAt) && s.CreatedAt.After(latest.CreatedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockSubmissionRepo) CountStored(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.Status == model.SubmissionStored {
			n++
		}
	}
	return n, nil
}

func (m *mockSubmissionRepo) MarkStored(_ context.Context, id, code, semesterKey string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, other := range m.subs {
		if other.ReferenceCode != nil && *other.ReferenceCode == code {
			return gorm.ErrDuplicatedKey
		}
	}
	s.Status = model.SubmissionStored
	s.ReferenceCode = &code
	s.SemesterKey = &semesterKey
	s.ProcessedAt = &at
	return nil
}

func (m *mockSubmissionRepo) ListPending(_ context.Context) ([]model.Submission, error) {
	return m.filter(model.SubmissionPending), nil
}

func (m *mockSubmissionRepo) filter(status string) []model.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Submission
	for _, s := range m.subs {
		if s.Status == status {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubmittedAt.Before(result[j].SubmittedAt) })
	return result
}

func (m *mockSubmissionRepo) ArchiveStored(_ context.Context, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.subs {
		if s.Status != model.SubmissionStored {
			continue
		}
		m.archive = append(m.archive, *s.ToArchive(model.SubmissionStored, model.ArchiveRollover, at))
		delete(m.subs, id)
		n++
	}
	return n, nil
}

func (m *mockSubmissionRepo) Archive(_ context.Context, entry *model.ArchivedSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = append(m.archive, *entry)
	delete(m.subs, entry.SubmissionID)
	return nil
}

func (m *mockSubmissionRepo) ListArchive(_ context.Context, offset, limit int) ([]model.ArchivedSubmission, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := int64(len(m.archive))
	if offset >= len(m.archive) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(m.archive) {
		end = len(m.archive)
	}
	return append([]model.ArchivedSubmission(nil), m.archive[offset:end]...), total, nil
}

// seedStored 预置一条已存储的提交
func (m *mockSubmissionRepo) seedStored(submittedAt time.Time, code string) {
	key := code[:3]
	sub := &model.Submission{
		SubmittedAt:    submittedAt,
		SubmitterName:  "Earlier",
		SubmitterEmail: "earlier@example.edu",
		SheetLink:      "seed",
		TargetCount:    1,
		Status:         model.SubmissionStored,
		ReferenceCode:  &code,
		SemesterKey:    &key,
	}
	_ = m.Create(context.Background(), sub)
}

// ── Mock TargetRepository ──

type mockTargetRepo struct {
	mu         sync.Mutex
	seq        int
	records    []model.MasterRecord
	expired    []model.ExpiredTarget
	failCreate error
}

func newMockTargetRepo() *mockTargetRepo {
	return &mockTargetRepo{}
}

func (m *mockTargetRepo) BatchCreate(_ context.Context, records []model.MasterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	for _, r := range records {
		m.seq++
		r.RecordID = fmt.Sprintf("rec-%03d", m.seq)
		m.records = append(m.records, r)
	}
	return nil
}

func (m *mockTargetRepo) List(_ context.Context, offset, limit int) ([]model.MasterRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := int64(len(m.records))
	if offset >= len(m.records) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return append([]model.MasterRecord(nil), m.records[offset:end]...), total, nil
}

func (m *mockTargetRepo) ListAll(_ context.Context) ([]model.MasterRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.MasterRecord(nil), m.records...), nil
}

func (m *mockTargetRepo) ListClosedBefore(_ context.Context, day time.Time) ([]model.MasterRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.MasterRecord
	for _, r := range m.records {
		if r.WindowClose.Before(day) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockTargetRepo) MoveToExpired(_ context.Context, records []model.MasterRecord, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	moving := make(map[string]bool, len(records))
	for _, r := range records {
		moving[r.RecordID] = true
		m.expired = append(m.expired, model.ExpiredTarget{RecordID: r.RecordID, TargetFields: r.TargetFields, ExpiredAt: at})
	}
	kept := m.records[:0]
	for _, r := range m.records {
		if !moving[r.RecordID] {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *mockTargetRepo) ListExpired(_ context.Context) ([]model.ExpiredTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ExpiredTarget(nil), m.expired...), nil
}

// ── Mock NightRepository ──

type mockNightRepo struct {
	mu         sync.Mutex
	seq        int
	nights     map[string]*model.ScheduledNight // key: 2006-01-02
	failSignup error
}

func newMockNightRepo() *mockNightRepo {
	return &mockNightRepo{nights: make(map[string]*model.ScheduledNight)}
}

func nightKey(t time.Time) string { return t.Format("2006-01-02") }

func copyNight(n *model.ScheduledNight) *model.ScheduledNight {
	cp := *n
	cp.Signups = append([]model.NightSignup(nil), n.Signups...)
	return &cp
}

func (m *mockNightRepo) Create(_ context.Context, night *model.ScheduledNight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := nightKey(night.NightDate)
	if _, ok := m.nights[key]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	m.seq++
	night.NightID = fmt.Sprintf("night-%03d", m.seq)
	stored := copyNight(night)
	stored.Signups = nil
	m.nights[key] = stored
	return nil
}

func (m *mockNightRepo) GetByDate(_ context.Context, date time.Time) (*model.ScheduledNight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nights[nightKey(date)]; ok {
		return copyNight(n), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNightRepo) GetByDateForUpdate(ctx context.Context, date time.Time) (*model.ScheduledNight, error) {
	return m.GetByDate(ctx, date)
}

func (m *mockNightRepo) Update(_ context.Context, night *model.ScheduledNight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.nights[nightKey(night.NightDate)]
	if !ok || stored.Version != night.Version {
		return pkgerrors.ErrOptimisticLock
	}
	night.Version++
	stored.JuniorCount = night.JuniorCount
	stored.SeniorName = night.SeniorName
	stored.SeniorEmail = night.SeniorEmail
	stored.Version = night.Version
	return nil
}

func (m *mockNightRepo) AddSignup(_ context.Context, signup *model.NightSignup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSignup != nil {
		return m.failSignup
	}
	for _, n := range m.nights {
		if n.NightID == signup.NightID {
			m.seq++
			signup.SignupID = fmt.Sprintf("signup-%03d", m.seq)
			n.Signups = append(n.Signups, *signup)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockNightRepo) List(_ context.Context, desc bool) ([]model.ScheduledNight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.ScheduledNight, 0, len(m.nights))
	for _, n := range m.nights {
		result = append(result, *copyNight(n))
	}
	sort.Slice(result, func(i, j int) bool {
		if desc {
			return result[i].NightDate.After(result[j].NightDate)
		}
		return result[i].NightDate.Before(result[j].NightDate)
	})
	return result, nil
}

// ── Mock ObserverRepository ──

type mockObserverRepo struct {
	mu        sync.Mutex
	seq       int
	observers map[string]*model.Observer // key: name
}

func newMockObserverRepo() *mockObserverRepo {
	return &mockObserverRepo{observers: make(map[string]*model.Observer)}
}

func copyObserver(o *model.Observer) *model.Observer {
	cp := *o
	cp.Entries = append([]model.AttendanceEntry(nil), o.Entries...)
	sort.Slice(cp.Entries, func(i, j int) bool { return cp.Entries[i].NightDate.Before(cp.Entries[j].NightDate) })
	return &cp
}

func (m *mockObserverRepo) Create(_ context.Context, observer *model.Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.observers[observer.Name]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	m.seq++
	observer.ObserverID = fmt.Sprintf("obs-%03d", m.seq)
	stored := copyObserver(observer)
	stored.Entries = nil
	m.observers[observer.Name] = stored
	return nil
}

func (m *mockObserverRepo) GetByName(_ context.Context, name string) (*model.Observer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.observers[name]; ok {
		return copyObserver(o), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockObserverRepo) byID(id string) *model.Observer {
	for _, o := range m.observers {
		if o.ObserverID == id {
			return o
		}
	}
	return nil
}

func (m *mockObserverRepo) UpdateCounts(_ context.Context, observer *model.Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(observer.ObserverID)
	if o == nil {
		return gorm.ErrRecordNotFound
	}
	o.NightsObserved = observer.NightsObserved
	o.NightsMissed = observer.NightsMissed
	return nil
}

func (m *mockObserverRepo) AddEntry(_ context.Context, entry *model.AttendanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(entry.ObserverID)
	if o == nil {
		return gorm.ErrRecordNotFound
	}
	for _, e := range o.Entries {
		if e.NightDate.Equal(entry.NightDate) {
			return errors.New("duplicate key value violates unique constraint \"uq_attendance_observer_night\"")
		}
	}
	m.seq++
	entry.EntryID = fmt.Sprintf("entry-%03d", m.seq)
	o.Entries = append(o.Entries, *entry)
	return nil
}

func (m *mockObserverRepo) HasEntry(_ context.Context, observerID string, night time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.byID(observerID)
	if o == nil {
		return false, nil
	}
	for _, e := range o.Entries {
		if e.NightDate.Equal(night) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockObserverRepo) List(_ context.Context) ([]model.Observer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Observer, 0, len(m.observers))
	for _, o := range m.observers {
		result = append(result, *copyObserver(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ── Mock CalendarEventRepository ──

type mockCalendarEventRepo struct {
	mu     sync.Mutex
	events []model.CalendarEvent
}

func (m *mockCalendarEventRepo) Create(_ context.Context, event *model.CalendarEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.UID == event.UID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	event.EventID = fmt.Sprintf("event-%03d", len(m.events)+1)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = event.StartsAt
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *mockCalendarEventRepo) List(_ context.Context) ([]model.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.CalendarEvent(nil), m.events...), nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	mu    sync.Mutex
	items []model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *n)
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Notification
	for _, n := range m.items {
		if n.Recipient == recipient {
			result = append(result, n)
		}
	}
	return result, int64(len(result)), nil
}

// ── 协作方替身 ──

type sentMessage struct {
	To      string
	Subject string
	Body    string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (d *recordingDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (d *recordingDispatcher) last() sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sent) == 0 {
		return sentMessage{}
	}
	return d.sent[len(d.sent)-1]
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type stubCalendar struct {
	mu     sync.Mutex
	events []Twilight
	titles []string
	err    error
}

func (c *stubCalendar) CreateEvent(_ context.Context, title string, start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.titles = append(c.titles, title)
	c.events = append(c.events, Twilight{Sunset: start, Sunrise: end})
	return nil
}

func (c *stubCalendar) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// memFetcher 以链接为键返回预先生成的 xlsx
type memFetcher struct {
	books map[string][]byte
}

func (f *memFetcher) Fetch(_ context.Context, link string) (*sheet.Workbook, error) {
	data, ok := f.books[link]
	if !ok {
		return nil, errors.New("获取表格失败: HTTP 404")
	}
	return sheet.Open(bytes.NewReader(data))
}

// buildWorkbook 表头写在第 1 行，数据自第 4 行起
func buildWorkbook(t *testing.T, header []string, rows [][]string) []byte {
	t.Helper()
	wb, err := sheet.New("Targets")
	if err != nil {
		t.Fatalf("创建工作簿失败: %v", err)
	}
	defer wb.Close()
	if err := wb.WriteRange("Targets", 1, 1, [][]string{header}); err != nil {
		t.Fatalf("写入表头失败: %v", err)
	}
	if len(rows) > 0 {
		if err := wb.WriteRange("Targets", 4, 1, rows); err != nil {
			t.Fatalf("写入数据失败: %v", err)
		}
	}
	buf, err := wb.Bytes()
	if err != nil {
		t.Fatalf("序列化工作簿失败: %v", err)
	}
	return buf.Bytes()
}

// ── 测试环境 ──

// testNow 2026-10-19 11:00 America/New_York
var testNow = time.Date(2026, time.October, 19, 15, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{JWTSecret: "test-secret-key-at-least-32-bytes!!"},
		Schedule: config.ScheduleConfig{
			Timezone:      "America/New_York",
			MaxJunior:     5,
			CalendarTitle: "Observing",
			CalendarName:  "RETRHO Observing",
		},
		Intake: config.IntakeConfig{
			TemplateColumns: []string{"A", "B", "C", "D"},
			NameColumn:      2,
			OpenColumn:      3,
			CloseColumn:     4,
			HeaderRow:       1,
			DataStartRow:    4,
		},
		Links: config.LinksConfig{
			TemplateSheet: "https://example.edu/template",
			SubmitForm:    "https://example.edu/submit",
			SignupForm:    "https://example.edu/signup",
			FollowupForm:  "https://example.edu/followup",
			SignupSheet:   "https://example.edu/schedule",
			ProgramName:   "RETRHO",
		},
	}
}

type testEnv struct {
	cfg        *config.Config
	repo       *repository.Repository
	subs       *mockSubmissionRepo
	targets    *mockTargetRepo
	nights     *mockNightRepo
	observers  *mockObserverRepo
	events     *mockCalendarEventRepo
	dispatcher *recordingDispatcher
	calendar   *stubCalendar
	fetcher    *memFetcher
	now        time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		cfg:        testConfig(),
		subs:       newMockSubmissionRepo(),
		targets:    newMockTargetRepo(),
		nights:     newMockNightRepo(),
		observers:  newMockObserverRepo(),
		events:     &mockCalendarEventRepo{},
		dispatcher: &recordingDispatcher{},
		calendar:   &stubCalendar{},
		fetcher:    &memFetcher{books: make(map[string][]byte)},
		now:        testNow,
	}
	env.repo = &repository.Repository{
		Submission:    env.subs,
		Target:        env.targets,
		Night:         env.nights,
		Observer:      env.observers,
		CalendarEvent: env.events,
		Notification:  &mockNotificationRepo{},
	}
	return env
}

func (e *testEnv) collab() Collaborators {
	return Collaborators{
		Locker:     NewLocalLocker(),
		Dispatcher: e.dispatcher,
		Calendar:   e.calendar,
		Fetcher:    e.fetcher,
		Clock:      func() time.Time { return e.now },
	}
}

func (e *testEnv) renderer() *notify.Renderer {
	return notify.NewRenderer(e.cfg.Links, e.cfg.Schedule.MaxJunior)
}

func (e *testEnv) signupService() SignupService {
	calendar := NewCalendarService(e.cfg, e.repo, e.calendar, zap.NewNop())
	return NewSignupService(e.cfg, e.repo, calendar, e.renderer(), e.collab(), zap.NewNop())
}

func (e *testEnv) consolidationService() ConsolidationService {
	return NewConsolidationService(e.cfg, e.repo, e.renderer(), e.collab(), zap.NewNop())
}

func (e *testEnv) attendanceService() AttendanceService {
	return NewAttendanceService(e.repo, NewLocalLocker(), nil, zap.NewNop())
}
