package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/smartcampusmng/campus-fees-api/internal/models"
)

func TestFeeAlertRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeAlertRepository(db)

	mock.ExpectExec("INSERT INTO fee_alerts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	alert := &models.FeeAlert{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		SentBy:       "staff-1",
		Message:      "Tuition is due",
	}
	err := repo.Create(context.Background(), alert)
	require.NoError(t, err)
	require.NotEmpty(t, alert.ID)
	require.False(t, alert.AlertDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeAlertRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeAlertRepository(db)

	mock.ExpectExec("INSERT INTO fee_alerts").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_fee_alerts_sender"})

	err := repo.Create(context.Background(), &models.FeeAlert{
		StudentID:    "s1",
		StudentFeeID: "fee-1",
		SentBy:       "staff-1",
		Message:      "Tuition is due",
	})
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeAlertRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeAlertRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM fee_alerts WHERE student_id = $1 AND student_fee_id = $2 AND sent_by = $3 LIMIT 1")).
		WithArgs("s1", "fee-1", "staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByStudentAndFeeAndSender(context.Background(), "s1", "fee-1", "staff-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeAlertRepositoryListBySender(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeAlertRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "student_fee_id", "sent_by", "alert_date", "message", "fee_name", "status"}).
		AddRow("alert-1", "s1", "fee-1", "staff-1", time.Now(), "Tuition is due", "Tuition", models.FeeStatusOverdue)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.sent_by = $1 ORDER BY a.alert_date DESC")).
		WithArgs("staff-1").
		WillReturnRows(rows)

	alerts, err := repo.ListBySender(context.Background(), "staff-1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "Tuition", alerts[0].FeeName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeeAlertRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewFeeAlertRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM fee_alerts WHERE id = $1")).
		WithArgs("alert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "alert-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
