package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
	appErrors "github.com/smartcampusmng/campus-fees-api/pkg/errors"
)

type mockFeeAlertRepo struct {
	alerts    map[string]models.FeeAlert
	deleted   []string
	seq       int
	createErr error
}

func alertKey(studentID, studentFeeID, sentBy string) string {
	return studentID + "|" + studentFeeID + "|" + sentBy
}

func (m *mockFeeAlertRepo) Create(ctx context.Context, alert *models.FeeAlert) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.alerts == nil {
		m.alerts = make(map[string]models.FeeAlert)
	}
	m.seq++
	alert.ID = fmt.Sprintf("alert-%d", m.seq)
	m.alerts[alertKey(alert.StudentID, alert.StudentFeeID, alert.SentBy)] = *alert
	return nil
}

func (m *mockFeeAlertRepo) FindByID(ctx context.Context, id string) (*models.FeeAlert, error) {
	for _, a := range m.alerts {
		if a.ID == id {
			alert := a
			return &alert, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeAlertRepo) ExistsByStudentAndFeeAndSender(ctx context.Context, studentID, studentFeeID, sentBy string) (bool, error) {
	_, ok := m.alerts[alertKey(studentID, studentFeeID, sentBy)]
	return ok, nil
}

func (m *mockFeeAlertRepo) ListByStudentAndFee(ctx context.Context, studentID, studentFeeID string) ([]models.FeeAlert, error) {
	var list []models.FeeAlert
	for _, a := range m.alerts {
		if a.StudentID == studentID && a.StudentFeeID == studentFeeID {
			list = append(list, a)
		}
	}
	return list, nil
}

func (m *mockFeeAlertRepo) ListBySender(ctx context.Context, sentBy string) ([]models.FeeAlertDetail, error) {
	var list []models.FeeAlertDetail
	for _, a := range m.alerts {
		if a.SentBy == sentBy {
			list = append(list, models.FeeAlertDetail{FeeAlert: a})
		}
	}
	return list, nil
}

func (m *mockFeeAlertRepo) ListByStudent(ctx context.Context, studentID string) ([]models.FeeAlertDetail, error) {
	var list []models.FeeAlertDetail
	for _, a := range m.alerts {
		if a.StudentID == studentID {
			list = append(list, models.FeeAlertDetail{FeeAlert: a})
		}
	}
	return list, nil
}

func (m *mockFeeAlertRepo) Delete(ctx context.Context, id string) error {
	for key, a := range m.alerts {
		if a.ID == id {
			delete(m.alerts, key)
			m.deleted = append(m.deleted, id)
		}
	}
	return nil
}

func newAlertSvc(alerts *mockFeeAlertRepo, fees *mockStudentFeeRepo) *FeeAlertService {
	svc := NewFeeAlertService(alerts, fees, nil, zap.NewNop(), 10)
	svc.now = func() time.Time { return time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCreateAlertMarksPendingFeeAlerted(t *testing.T) {
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	alert, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.NoError(t, err)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, "staff-1", alert.SentBy)

	fee, err := fees.FindByID(context.Background(), "fee-1")
	require.NoError(t, err)
	assert.True(t, fee.Alerted)
}

func TestCreateAlertOverdueFeeStaysUnalerted(t *testing.T) {
	// Documented behaviour: the alerted flag is only raised for PENDING
	// fees. Alerting an OVERDUE fee leaves alerted=false.
	fees := pendingFeeRepo()
	require.NoError(t, fees.UpdateStatus(context.Background(), "fee-1", models.FeeStatusOverdue))
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	_, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is overdue",
	}, "staff-1")
	require.NoError(t, err)

	fee, err := fees.FindByID(context.Background(), "fee-1")
	require.NoError(t, err)
	assert.False(t, fee.Alerted)
}

func TestCreateAlertInsertFailureLeavesFeeUnalerted(t *testing.T) {
	// The alerted flag follows the insert. A storage failure on the
	// insert must not leave the fee flagged with no alert on file.
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{createErr: fmt.Errorf("connection reset")}
	svc := newAlertSvc(alerts, fees)

	_, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.Error(t, err)
	assert.Empty(t, alerts.alerts)

	fee, err := fees.FindByID(context.Background(), "fee-1")
	require.NoError(t, err)
	assert.False(t, fee.Alerted)
}

func TestCreateAlertConflictHealsAlertedFlag(t *testing.T) {
	// An alert on file for a PENDING fee whose flag was never written
	// (crash between insert and flag write) heals on the next attempt,
	// even though that attempt reports the duplicate conflict.
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{alerts: map[string]models.FeeAlert{
		alertKey("s1", "fee-1", "staff-1"): {
			ID:           "alert-1",
			StudentID:    "s1",
			StudentFeeID: "fee-1",
			SentBy:       "staff-1",
			Message:      "Tuition is due",
		},
	}}
	svc := newAlertSvc(alerts, fees)

	_, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAlert.Code, appErrors.FromError(err).Code)

	fee, err := fees.FindByID(context.Background(), "fee-1")
	require.NoError(t, err)
	assert.True(t, fee.Alerted)
}

func TestCreateAlertDuplicateConflict(t *testing.T) {
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	req := CreateAlertRequest{StudentID: "s1", StudentFeeID: "fee-1", Message: "Tuition is due"}
	_, err := svc.CreateAlert(context.Background(), req, "staff-1")
	require.NoError(t, err)

	_, err = svc.CreateAlert(context.Background(), req, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAlert.Code, appErrors.FromError(err).Code)

	// A different sender may still alert the same fee.
	_, err = svc.CreateAlert(context.Background(), req, "staff-2")
	require.NoError(t, err)
	assert.Len(t, alerts.alerts, 2)
}

func TestCreateAlertFeeStudentMismatch(t *testing.T) {
	fees := pendingFeeRepo()
	svc := newAlertSvc(&mockFeeAlertRepo{}, fees)

	_, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "someone-else",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateAlertFeeNotFound(t *testing.T) {
	fees := pendingFeeRepo()
	svc := newAlertSvc(&mockFeeAlertRepo{}, fees)

	_, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "missing",
		Message:      "Tuition is due",
	}, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSendBatchIsolatesFailures(t *testing.T) {
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	reqs := []CreateAlertRequest{
		{StudentID: "s1", StudentFeeID: "fee-1", Message: "Tuition is due"},
		{StudentID: "s1", StudentFeeID: "fee-1", Message: "Tuition is due"}, // duplicate
		{StudentID: "s1", StudentFeeID: "missing", Message: "Tuition is due"},
	}
	result, err := svc.SendBatch(context.Background(), reqs, "staff-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Items, 3)
	assert.NotNil(t, result.Items[0].Alert)
	require.NotNil(t, result.Items[1].Error)
	assert.Equal(t, appErrors.ErrDuplicateAlert.Code, result.Items[1].Error.Code)
	require.NotNil(t, result.Items[2].Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, result.Items[2].Error.Code)
}

func TestSendBatchLimits(t *testing.T) {
	fees := pendingFeeRepo()
	svc := newAlertSvc(&mockFeeAlertRepo{}, fees)

	_, err := svc.SendBatch(context.Background(), nil, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	oversized := make([]CreateAlertRequest, 11)
	for i := range oversized {
		oversized[i] = CreateAlertRequest{StudentID: "s1", StudentFeeID: "fee-1", Message: "m"}
	}
	_, err = svc.SendBatch(context.Background(), oversized, "staff-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteAlert(t *testing.T) {
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	alert, err := svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAlert(context.Background(), alert.ID))
	assert.Contains(t, alerts.deleted, alert.ID)

	err = svc.DeleteAlert(context.Background(), alert.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestHasAlert(t *testing.T) {
	fees := pendingFeeRepo()
	alerts := &mockFeeAlertRepo{}
	svc := newAlertSvc(alerts, fees)

	exists, err := svc.HasAlert(context.Background(), "s1", "fee-1", "staff-1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.CreateAlert(context.Background(), CreateAlertRequest{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		Message:      "Tuition is due",
	}, "staff-1")
	require.NoError(t, err)

	exists, err = svc.HasAlert(context.Background(), "s1", "fee-1", "staff-1")
	require.NoError(t, err)
	assert.True(t, exists)
}
