package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/alokranjan04/admin-voice-agent/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionBookings = "bookings"
	collectionCalls    = "calls"
)

// Firestore implements Repository on Cloud Firestore
type Firestore struct {
	client *firestore.Client
}

// NewFirestore connects to databaseID in projectID
func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}
	return &Firestore{client: client}, nil
}

func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) PutBooking(ctx context.Context, booking *model.BookingRecord) error {
	_, err := r.client.Collection(collectionBookings).Doc(booking.ID.String()).Create(ctx, booking)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to put booking", goerr.V("id", booking.ID))
	}
	return nil
}

func (r *Firestore) ListBookings(ctx context.Context, limit int) ([]*model.BookingRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	iter := r.client.Collection(collectionBookings).
		OrderBy("created_at", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var bookings []*model.BookingRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate bookings")
		}

		var b model.BookingRecord
		if err := doc.DataTo(&b); err != nil {
			return nil, goerr.Wrap(err, "failed to decode booking", goerr.V("doc_id", doc.Ref.ID))
		}
		bookings = append(bookings, &b)
	}
	return bookings, nil
}

func (r *Firestore) PutCallLog(ctx context.Context, log *model.CallLog) error {
	_, err := r.client.Collection(collectionCalls).Doc(log.SessionID.String()).Set(ctx, log)
	if err != nil {
		return goerr.Wrap(err, "failed to put call log", goerr.V("session_id", log.SessionID))
	}
	return nil
}

func (r *Firestore) GetCallLog(ctx context.Context, id model.SessionID) (*model.CallLog, error) {
	doc, err := r.client.Collection(collectionCalls).Doc(id.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get call log", goerr.V("session_id", id))
	}

	var log model.CallLog
	if err := doc.DataTo(&log); err != nil {
		return nil, goerr.Wrap(err, "failed to decode call log", goerr.V("session_id", id))
	}
	return &log, nil
}
