package user

import (
	"context"
	"database/sql"
	"errors"

	"amana-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, name, email, password, role string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id uint) (User, error)
	SetStripeCustomerID(ctx context.Context, userID uint, customerID string) error
	SetFlutterwaveCustomerID(ctx context.Context, userID uint, customerID string) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, name, email, password, role, stripe_customer_id, flutterwave_customer_id`

func (r *repository) Create(ctx context.Context, name, email, password, role string) (User, error) {
	log := logger.FromCtx(ctx)

	var u User
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password, role) VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		name, email, password, role,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.StripeCustomerID, &u.FlutterwaveCustomerID)

	if err != nil {
		log.Error("db: failed to insert user",
			zap.String("email", email),
			zap.Error(err),
		)
	}

	return u, err
}

func (r *repository) FindByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.StripeCustomerID, &u.FlutterwaveCustomerID)

	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) FindByID(ctx context.Context, id uint) (User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.StripeCustomerID, &u.FlutterwaveCustomerID)

	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *repository) SetStripeCustomerID(ctx context.Context, userID uint, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = $2 WHERE id = $1`,
		userID, customerID,
	)
	return err
}

func (r *repository) SetFlutterwaveCustomerID(ctx context.Context, userID uint, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET flutterwave_customer_id = $2 WHERE id = $1`,
		userID, customerID,
	)
	return err
}
