package donation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"amana-be/internal/gateway"

	json "github.com/goccy/go-json"
)

var ErrProviderRefAssigned = errors.New("provider reference already assigned")

type Repository interface {
	Create(ctx context.Context, d *Donation) error
	GetByUserAndID(ctx context.Context, userID, id uint) (*Donation, error)
	GetByProviderRef(ctx context.Context, provider gateway.Provider, ref string) (*Donation, error)
	SetProviderRef(ctx context.Context, id uint, ref string) error
	SetSubscriptionRef(ctx context.Context, id uint, subscriptionID string) error
	MarkCompleted(ctx context.Context, id uint, paidAt time.Time) error
	Transition(ctx context.Context, id uint, from, to Status) error
	ListByUser(ctx context.Context, userID uint) ([]Donation, error)

	InsertWebhookEvent(ctx context.Context, provider gateway.Provider, eventID, eventType string, payload []byte) (bool, error)
	SetWebhookEventStatus(ctx context.Context, provider gateway.Provider, eventID, status string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const donationColumns = `
	id, user_id, amount, currency, payment_type, payment_frequency,
	payment_provider_id, subscription_id, status, description, metadata,
	payment_date, next_payment_date, created_at, updated_at
`

func (r *repository) Create(ctx context.Context, d *Donation) error {
	metadata, err := marshalMetadata(d.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO donations (
			user_id, amount, currency, payment_type, payment_frequency,
			status, description, metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at, updated_at
	`

	return r.db.QueryRowContext(ctx, query,
		d.UserID,
		d.Amount,
		d.Currency,
		d.PaymentType,
		d.Frequency,
		d.Status,
		d.Description,
		metadata,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *repository) GetByUserAndID(ctx context.Context, userID, id uint) (*Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE id = $1 AND user_id = $2
	`

	d, err := scanDonation(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repository) GetByProviderRef(ctx context.Context, provider gateway.Provider, ref string) (*Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE payment_type = $1 AND payment_provider_id = $2
	`

	d, err := scanDonation(r.db.QueryRowContext(ctx, query, provider, ref))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// SetProviderRef records the provider-side id exactly once.
func (r *repository) SetProviderRef(ctx context.Context, id uint, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE donations
		SET payment_provider_id = $2, updated_at = NOW()
		WHERE id = $1 AND payment_provider_id IS NULL
	`, id, ref)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrProviderRefAssigned
	}
	return nil
}

func (r *repository) SetSubscriptionRef(ctx context.Context, id uint, subscriptionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE donations
		SET subscription_id = $2, updated_at = NOW()
		WHERE id = $1
	`, id, subscriptionID)
	return err
}

// MarkCompleted applies the pending to completed transition. Recurring
// donations get their next payment date scheduled a month out in the same
// statement, so a racing transition can never observe a half-applied row.
func (r *repository) MarkCompleted(ctx context.Context, id uint, paidAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE donations
		SET status = 'completed',
			payment_date = $2,
			next_payment_date = CASE
				WHEN payment_frequency = 'monthly' THEN $2 + INTERVAL '1 month'
				ELSE NULL
			END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, paidAt)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConflictingTransition
	}
	return nil
}

// Transition moves a donation from an expected status to a new one. The
// WHERE guard serializes racing transitions: only the first one wins.
func (r *repository) Transition(ctx context.Context, id uint, from, to Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE donations
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConflictingTransition
	}
	return nil
}

func (r *repository) ListByUser(ctx context.Context, userID uint) ([]Donation, error) {
	query := `
		SELECT ` + donationColumns + `
		FROM donations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var donations []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return donations, nil
}

// InsertWebhookEvent records a received event, reporting false when the same
// (provider, event id) pair was already stored by an earlier delivery.
func (r *repository) InsertWebhookEvent(ctx context.Context, provider gateway.Provider, eventID, eventType string, payload []byte) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events (provider, event_id, event_type, payload, status)
		VALUES ($1, $2, $3, $4, 'received')
		ON CONFLICT (provider, event_id) DO NOTHING
	`, provider, eventID, eventType, payload)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *repository) SetWebhookEventStatus(ctx context.Context, provider gateway.Provider, eventID, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = $3
		WHERE provider = $1 AND event_id = $2
	`, provider, eventID, status)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(row rowScanner) (*Donation, error) {
	var (
		d        Donation
		metadata []byte
	)

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Amount,
		&d.Currency,
		&d.PaymentType,
		&d.Frequency,
		&d.ProviderRef,
		&d.SubscriptionID,
		&d.Status,
		&d.Description,
		&metadata,
		&d.PaymentDate,
		&d.NextPaymentDate,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, err
		}
	}

	return &d, nil
}

func marshalMetadata(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
