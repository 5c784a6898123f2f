package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/cache"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/entity"
	"github.com/sagrado26/ehstoolkit-sub000/internal/ehs/repository"
)

func TestPreferenceService_DefaultsCacheAndInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	c := cache.New(rdb, time.Hour)

	repos := repository.NewMemoryRepositories()
	svc := NewPreferenceService(repos, c, zap.NewNop())
	ctx := context.Background()

	pref, err := svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultUserPreference("u-1"), *pref)
	assert.True(t, mr.Exists(cache.PreferenceKey("u-1")))

	saved, err := svc.Save(ctx, SavePreferenceRequest{UserID: "u-1", System: "EUV", IsFirstTime: "false"})
	require.NoError(t, err)
	assert.Equal(t, "EUV", saved.System)
	assert.Equal(t, "Europe", saved.Group)
	assert.False(t, mr.Exists(cache.PreferenceKey("u-1")))

	pref, err = svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "EUV", pref.System)
	assert.Equal(t, "false", pref.IsFirstTime)

	_, err = svc.Get(ctx, " ")
	require.ErrorIs(t, err, ErrValidation)
}

func TestPreferenceService_WorksWithoutCache(t *testing.T) {
	svc := NewPreferenceService(repository.NewMemoryRepositories(), nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Save(ctx, SavePreferenceRequest{UserID: "u-2", Role: "ehs_admin"})
	require.NoError(t, err)
	_, err = svc.Save(ctx, SavePreferenceRequest{UserID: "u-2", Site: "F24"})
	require.NoError(t, err)

	pref, err := svc.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Equal(t, "F24", pref.Site)
	assert.Equal(t, "user", pref.Role)
}

func TestHealthService_Ready(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewHealthService(db, nil)

	mock.ExpectPing()
	st := svc.Ready(context.Background())
	assert.True(t, st.Ready)
	assert.Equal(t, "ok", st.Checks["database"])
	assert.Equal(t, "disabled", st.Checks["cache"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	st = svc.Ready(context.Background())
	assert.False(t, st.Ready)
	assert.Equal(t, "connection refused", st.Checks["database"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthService_MemoryStore(t *testing.T) {
	st := NewHealthService(nil, nil).Ready(context.Background())
	assert.True(t, st.Ready)
	assert.Equal(t, "memory", st.Checks["database"])
}

func TestExportService_SharePointAndWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := samplePlan()
	p.Q11OtherPPE = "yes"
	plan := createPlan(t, f, p)
	_, err := f.svc.SafetyPlans.Approve(ctx, plan.ID, ApproveRequest{ApproverName: "Declan"})
	require.NoError(t, err)

	out, err := f.svc.Export.SharePoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PTPSafetyPlans", out.ListName)
	assert.Equal(t, 1, out.ItemCount)
	item := out.Items[0]
	assert.Equal(t, "Replace source vessel", item.Title)
	assert.Equal(t, "yes", item.Q11OtherPPE)
	assert.Equal(t, `["Working at Height","Noise"]`, item.Hazards)
	assert.Equal(t, `["Sean","Mary"]`, item.Engineers)
	assert.Equal(t, "approved", item.Status)

	wb, name, err := f.svc.Export.Workbook(ctx)
	require.NoError(t, err)
	defer wb.Close()
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	isp, err := wb.GetCellValue("Safety Plans", "A2")
	require.NoError(t, err)
	assert.Equal(t, "ISP-0001", isp)
	band, err := wb.GetCellValue("Safety Plans", "V2")
	require.NoError(t, err)
	assert.Equal(t, "High", band)

	rows, err := wb.GetRows("Audit Log")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "approved", rows[1][1])
	assert.Equal(t, "created", rows[2][1])
}

func TestRegisterService_CrudAndMerge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.svc.CraneInspections

	_, err := svc.Create(ctx, []byte(`{"inspector":"Sean"}`))
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, ErrorDetails(err), "bay is required")

	created, err := svc.Create(ctx, []byte(`{"inspector":"Sean","buddyInspector":"Mary","bay":"3","machine":"M1","date":"2026-10-01","q1":"yes"}`))
	require.NoError(t, err)
	assert.Equal(t, "yes", created.Q1)
	assert.Equal(t, "no", created.Q2)
	assert.Equal(t, "draft", created.Status)

	patched, err := svc.Patch(ctx, created.ID, []byte(`{"status":"submitted","id":99}`))
	require.NoError(t, err)
	assert.Equal(t, created.ID, patched.ID)
	assert.Equal(t, "submitted", patched.Status)
	assert.Equal(t, "Sean", patched.Inspector)
	assert.Equal(t, created.CreatedAt.Unix(), patched.CreatedAt.Unix())

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Crane inspection not found", PublicMessage(err, ""))

	incident, err := f.svc.Incidents.Create(ctx, []byte(`{"date":"2026-10-02","type":"Near miss","location":"Bay 1","description":"Dropped tool","assignedInvestigator":"Orla"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, incident.Severity)
	assert.Equal(t, "open", incident.Status)
}

// memStore 内存对象存储
type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStore) PresignedURL(ctx context.Context, key, fileName string, expiry time.Duration) (string, error) {
	return "https://files.local/" + key + "?name=" + fileName, nil
}

func TestDocumentService_UploadAndDownload(t *testing.T) {
	repos := repository.NewMemoryRepositories()
	store := &memStore{objects: map[string][]byte{}}
	svc := NewDocumentService(repos, store)
	ctx := context.Background()

	doc, err := svc.Create(ctx, []byte(`{"title":"LOTO procedure","category":"Procedures","description":"","sharepointUrl":""}`))
	require.NoError(t, err)

	_, err = svc.DownloadURL(ctx, doc.ID)
	require.ErrorIs(t, err, ErrNotFound)

	content := []byte("%PDF-1.4")
	updated, err := svc.Upload(ctx, doc.ID, "LOTO.PDF", bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	require.NotNil(t, updated.ObjectKey)
	assert.True(t, strings.HasPrefix(*updated.ObjectKey, "documents/1/"))
	assert.True(t, strings.HasSuffix(*updated.ObjectKey, ".pdf"))
	assert.Equal(t, content, store.objects[*updated.ObjectKey])

	url, err := svc.DownloadURL(ctx, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, url, *updated.ObjectKey)

	_, err = svc.Upload(ctx, 999, "x.pdf", bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentService_NoStore(t *testing.T) {
	svc := NewDocumentService(repository.NewMemoryRepositories(), nil)
	_, err := svc.DownloadURL(context.Background(), 1)
	assert.True(t, IsStorageUnavailable(err))
}
