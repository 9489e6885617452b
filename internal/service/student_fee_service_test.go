package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type mockStudentFeeRepo struct {
	types     map[string]models.FeeType
	fees      map[string]models.StudentFeeDetail
	createErr error
	seq       int
}

func newMockStudentFeeRepo(types ...models.FeeType) *mockStudentFeeRepo {
	m := &mockStudentFeeRepo{types: make(map[string]models.FeeType), fees: make(map[string]models.StudentFeeDetail)}
	for _, ft := range types {
		m.types[ft.ID] = ft
	}
	return m
}

func feeKey(studentID, feeTypeID string, semester, academicYear *string) string {
	sem, year := "", ""
	if semester != nil {
		sem = *semester
	}
	if academicYear != nil {
		year = *academicYear
	}
	return studentID + "|" + feeTypeID + "|" + sem + "|" + year
}

func (m *mockStudentFeeRepo) FindByID(ctx context.Context, id string) (*models.StudentFeeDetail, error) {
	for _, fee := range m.fees {
		if fee.ID == id {
			f := fee
			return &f, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentFeeRepo) ListByStudentAndStatus(ctx context.Context, studentID string, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	var list []models.StudentFeeDetail
	for _, fee := range m.fees {
		if fee.StudentID == studentID && fee.Status == status {
			list = append(list, fee)
		}
	}
	return list, nil
}

func (m *mockStudentFeeRepo) ListByStudentAndPeriod(ctx context.Context, studentID, semester, academicYear string) ([]models.StudentFeeDetail, error) {
	var list []models.StudentFeeDetail
	for _, fee := range m.fees {
		if fee.StudentID != studentID {
			continue
		}
		semMatch := fee.Semester == nil || *fee.Semester == semester
		yearMatch := fee.AcademicYear == nil || *fee.AcademicYear == academicYear
		if semMatch && yearMatch {
			list = append(list, fee)
		}
	}
	return list, nil
}

func (m *mockStudentFeeRepo) ListByStatus(ctx context.Context, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	var list []models.StudentFeeDetail
	for _, fee := range m.fees {
		if fee.Status == status {
			list = append(list, fee)
		}
	}
	return list, nil
}

func (m *mockStudentFeeRepo) ListByPeriodAndStatus(ctx context.Context, semester, academicYear string, status models.FeeStatus) ([]models.StudentFeeDetail, error) {
	var list []models.StudentFeeDetail
	for _, fee := range m.fees {
		if fee.Status != status {
			continue
		}
		semMatch := (fee.Semester == nil && semester == "") || (fee.Semester != nil && *fee.Semester == semester)
		yearMatch := (fee.AcademicYear == nil && academicYear == "") || (fee.AcademicYear != nil && *fee.AcademicYear == academicYear)
		if semMatch && yearMatch {
			list = append(list, fee)
		}
	}
	return list, nil
}

func (m *mockStudentFeeRepo) ExistsByStudentAndFeeType(ctx context.Context, studentID, feeTypeID string) (bool, error) {
	for _, fee := range m.fees {
		if fee.StudentID == studentID && fee.FeeTypeID == feeTypeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentFeeRepo) ExistsByStudentAndFeeTypeAndPeriod(ctx context.Context, studentID, feeTypeID string, semester, academicYear *string) (bool, error) {
	_, ok := m.fees[feeKey(studentID, feeTypeID, semester, academicYear)]
	return ok, nil
}

func (m *mockStudentFeeRepo) Create(ctx context.Context, fee *models.StudentFee) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := feeKey(fee.StudentID, fee.FeeTypeID, fee.Semester, fee.AcademicYear)
	if _, ok := m.fees[key]; ok {
		return &pq.Error{Code: "23505"}
	}
	m.seq++
	fee.ID = fmt.Sprintf("fee-%d", m.seq)
	detail := models.StudentFeeDetail{StudentFee: *fee}
	if ft, ok := m.types[fee.FeeTypeID]; ok {
		detail.FeeName = ft.Name
		detail.Frequency = ft.Frequency
	}
	m.fees[key] = detail
	return nil
}

func (m *mockStudentFeeRepo) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	for key, fee := range m.fees {
		if fee.ID == id {
			fee.Status = status
			m.fees[key] = fee
		}
	}
	return nil
}

func (m *mockStudentFeeRepo) SetAlerted(ctx context.Context, id string, alerted bool) error {
	for key, fee := range m.fees {
		if fee.ID == id {
			fee.Alerted = alerted
			m.fees[key] = fee
		}
	}
	return nil
}

type mockFeeTypeReader struct {
	types []models.FeeType
}

func (m *mockFeeTypeReader) List(ctx context.Context) ([]models.FeeType, error) {
	return m.types, nil
}

func (m *mockFeeTypeReader) FindByID(ctx context.Context, id string) (*models.FeeType, error) {
	for _, ft := range m.types {
		if ft.ID == id {
			f := ft
			return &f, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func activeStudent(id string) *mockStudentReader {
	return &mockStudentReader{students: map[string]*models.Student{id: {ID: id, Active: true}}}
}

func newFeeService(repo *mockStudentFeeRepo, now time.Time, types ...models.FeeType) *StudentFeeService {
	svc := NewStudentFeeService(repo, &mockFeeTypeReader{types: types}, activeStudent("s1"), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestEnsureFeesSemesterWindow(t *testing.T) {
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), tuition)

	err := svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026")
	require.NoError(t, err)

	require.Len(t, repo.fees, 1)
	for _, fee := range repo.fees {
		assert.Equal(t, models.FeeStatusPending, fee.Status)
		require.NotNil(t, fee.Semester)
		assert.Equal(t, models.SemesterFirst, *fee.Semester)
		assert.Equal(t, 1500.0, fee.Amount)
		assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), fee.DueDate)
	}
}

func TestEnsureFeesSemesterOutOfWindow(t *testing.T) {
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)
	// First-semester request in March: outside Aug-Dec, nothing created.
	svc := newFeeService(repo, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), tuition)

	err := svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026")
	require.NoError(t, err)
	assert.Empty(t, repo.fees)
}

func TestEnsureFeesIdempotent(t *testing.T) {
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), tuition)

	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))
	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))
	assert.Len(t, repo.fees, 1)
}

func TestEnsureFeesYearly(t *testing.T) {
	library := models.FeeType{ID: "ft2", Name: "Library", Amount: 200, Frequency: models.FrequencyYearly}
	repo := newMockStudentFeeRepo(library)
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), library)

	// Matching academic year: created with a July 1 due date and no semester.
	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))
	require.Len(t, repo.fees, 1)
	for _, fee := range repo.fees {
		assert.Nil(t, fee.Semester)
		require.NotNil(t, fee.AcademicYear)
		assert.Equal(t, "2025-2026", *fee.AcademicYear)
		assert.Equal(t, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC), fee.DueDate)
	}

	// A past academic year does not materialise anything new.
	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2024-2025"))
	assert.Len(t, repo.fees, 1)
}

func TestEnsureFeesOneTimeOnlyOnce(t *testing.T) {
	admission := models.FeeType{ID: "ft3", Name: "Admission", Amount: 500, Frequency: models.FrequencyOneTime}
	repo := newMockStudentFeeRepo(admission)
	now := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)
	svc := newFeeService(repo, now, admission)

	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))
	require.Len(t, repo.fees, 1)
	for _, fee := range repo.fees {
		assert.Nil(t, fee.Semester)
		assert.Nil(t, fee.AcademicYear)
		assert.Equal(t, now.AddDate(0, 0, 30), fee.DueDate)
	}

	// A later period still sees the existing one-time fee.
	svc.now = func() time.Time { return time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterSecond, "2025-2026"))
	assert.Len(t, repo.fees, 1)
}

func TestEnsureFeesMonthly(t *testing.T) {
	meal := models.FeeType{ID: "ft4", Name: "Meal Plan", Amount: 120, Frequency: models.FrequencyMonthly}
	repo := newMockStudentFeeRepo(meal)
	now := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)
	svc := newFeeService(repo, now, meal)

	require.NoError(t, svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))
	require.Len(t, repo.fees, 1)
	for _, fee := range repo.fees {
		require.NotNil(t, fee.Semester)
		assert.Equal(t, now.AddDate(0, 0, 15), fee.DueDate)
	}
}

func TestEnsureFeesLostInsertRace(t *testing.T) {
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)
	repo.createErr = &pq.Error{Code: "23505"}
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), tuition)

	// Losing the insert race to a concurrent request is not an error.
	err := svc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026")
	require.NoError(t, err)
}

func TestEnsureFeesStudentNotFound(t *testing.T) {
	repo := newMockStudentFeeRepo()
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC))

	err := svc.EnsureFees(context.Background(), "ghost", models.SemesterFirst, "2025-2026")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPromoteOverdueFirstSemesterAfterFebruary(t *testing.T) {
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)

	createSvc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), tuition)
	require.NoError(t, createSvc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))

	// Second semester begins, the unpaid first-semester fee is past Feb 1.
	lateSvc := newFeeService(repo, time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), tuition)
	require.NoError(t, lateSvc.EnsureFees(context.Background(), "s1", models.SemesterSecond, "2025-2026"))

	var firstSemFee *models.StudentFeeDetail
	for _, fee := range repo.fees {
		if fee.Semester != nil && *fee.Semester == models.SemesterFirst {
			f := fee
			firstSemFee = &f
		}
	}
	require.NotNil(t, firstSemFee)
	assert.Equal(t, models.FeeStatusOverdue, firstSemFee.Status)
}

func TestPromoteOverdueFirstSemesterWaitsForNextFebruary(t *testing.T) {
	// The Feb 1 cutoff for an Aug-Dec fee falls in the next calendar
	// year. The fee stays PENDING for the whole of its own window.
	tuition := models.FeeType{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester}
	repo := newMockStudentFeeRepo(tuition)

	createSvc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), tuition)
	require.NoError(t, createSvc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))

	decemberSvc := newFeeService(repo, time.Date(2025, time.December, 20, 0, 0, 0, 0, time.UTC), tuition)
	require.NoError(t, decemberSvc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))

	require.Len(t, repo.fees, 1)
	for _, fee := range repo.fees {
		assert.Equal(t, models.FeeStatusPending, fee.Status)
	}

	februarySvc := newFeeService(repo, time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC), tuition)
	require.NoError(t, februarySvc.EnsureFees(context.Background(), "s1", models.SemesterSecond, "2025-2026"))

	for _, fee := range repo.fees {
		if fee.Semester != nil && *fee.Semester == models.SemesterFirst {
			assert.Equal(t, models.FeeStatusOverdue, fee.Status)
		}
	}
}

func TestPromoteOverdueSkipsNonSemesterFrequencies(t *testing.T) {
	// Documented behaviour: only SEMESTER fees are swept. A monthly fee
	// far past its due date stays PENDING.
	meal := models.FeeType{ID: "ft4", Name: "Meal Plan", Amount: 120, Frequency: models.FrequencyMonthly}
	repo := newMockStudentFeeRepo(meal)

	createSvc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), meal)
	require.NoError(t, createSvc.EnsureFees(context.Background(), "s1", models.SemesterFirst, "2025-2026"))

	lateSvc := newFeeService(repo, time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), meal)
	require.NoError(t, lateSvc.EnsureFees(context.Background(), "s1", models.SemesterSecond, "2025-2026"))

	for _, fee := range repo.fees {
		if fee.FeeTypeID == "ft4" && fee.Semester != nil && *fee.Semester == models.SemesterFirst {
			assert.Equal(t, models.FeeStatusPending, fee.Status)
		}
	}
}

func TestCreateInitialFeesSeedsAllFrequencies(t *testing.T) {
	types := []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
		{ID: "ft2", Name: "Library", Amount: 200, Frequency: models.FrequencyYearly},
		{ID: "ft3", Name: "Admission", Amount: 500, Frequency: models.FrequencyOneTime},
		{ID: "ft4", Name: "Meal Plan", Amount: 120, Frequency: models.FrequencyMonthly},
	}
	repo := newMockStudentFeeRepo(types...)
	now := time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC)
	svc := newFeeService(repo, now, types...)

	require.NoError(t, svc.CreateInitialFees(context.Background(), "s1"))
	assert.Len(t, repo.fees, 4)

	for _, fee := range repo.fees {
		switch fee.FeeTypeID {
		case "ft1", "ft4":
			require.NotNil(t, fee.Semester)
			assert.Equal(t, models.SemesterFirst, *fee.Semester)
			require.NotNil(t, fee.AcademicYear)
			assert.Equal(t, "2025-2026", *fee.AcademicYear)
		case "ft2":
			assert.Nil(t, fee.Semester)
			require.NotNil(t, fee.AcademicYear)
			assert.Equal(t, "2025-2026", *fee.AcademicYear)
		case "ft3":
			assert.Nil(t, fee.Semester)
			assert.Nil(t, fee.AcademicYear)
		}
	}

	// Rerunning the registration hook is harmless.
	require.NoError(t, svc.CreateInitialFees(context.Background(), "s1"))
	assert.Len(t, repo.fees, 4)
}

func TestFeesForPeriodIncludesPeriodlessFees(t *testing.T) {
	types := []models.FeeType{
		{ID: "ft1", Name: "Tuition", Amount: 1500, Frequency: models.FrequencySemester},
		{ID: "ft3", Name: "Admission", Amount: 500, Frequency: models.FrequencyOneTime},
	}
	repo := newMockStudentFeeRepo(types...)
	svc := newFeeService(repo, time.Date(2025, time.September, 10, 0, 0, 0, 0, time.UTC), types...)

	fees, err := svc.FeesForPeriod(context.Background(), "s1", models.SemesterFirst, "2025-2026")
	require.NoError(t, err)
	assert.Len(t, fees, 2)
}

func TestCurrentAcademicYearRollsOverInAugust(t *testing.T) {
	assert.Equal(t, "2024-2025", CurrentAcademicYear(time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-2026", CurrentAcademicYear(time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-2026", CurrentAcademicYear(time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)))
}

func TestCurrentSemesterLabels(t *testing.T) {
	assert.Equal(t, models.SemesterFirst, CurrentSemester(time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, models.SemesterSecond, CurrentSemester(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
	// June and July fall outside both windows and count as second semester.
	assert.Equal(t, models.SemesterSecond, CurrentSemester(time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)))
}
