package accounts

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// newMongoRepo connects to the server named by AUTHKEEPER_TEST_MONGO_URI and
// returns a repository on a throwaway database.
func newMongoRepo(t *testing.T) *MongoRepository {
	t.Helper()
	uri := os.Getenv("AUTHKEEPER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("AUTHKEEPER_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("authkeeper_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	r := NewMongoRepository(db)
	require.NoError(t, r.EnsureIndexes(ctx))
	return r
}

func TestMongo_Lifecycle(t *testing.T) {
	r := newMongoRepo(t)
	ctx := context.Background()

	a := newAccount(uuid.NewString(), "a@x.com", "123456")
	require.NoError(t, r.Create(ctx, a))

	err := r.Create(ctx, newAccount(uuid.NewString(), "a@x.com", "654321"))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	got, err := r.FindByVerificationToken(ctx, "123456", now)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = r.FindByVerificationToken(ctx, "123456", now.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	got, err = r.MarkVerified(ctx, a.ID, "123456", now)
	require.NoError(t, err)
	assert.True(t, got.IsVerified)
	assert.Nil(t, got.VerificationToken)
	_, err = r.MarkVerified(ctx, a.ID, "123456", now)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, r.SetResetToken(ctx, a.ID, "tok", now.Add(time.Hour), now))
	got, err = r.FindByResetToken(ctx, "tok", now)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	require.NoError(t, r.ConsumeReset(ctx, a.ID, "tok", "new-hash", now))
	assert.ErrorIs(t, r.ConsumeReset(ctx, a.ID, "tok", "other", now), common.ErrorNotFound)
	require.NoError(t, r.TouchLogin(ctx, a.ID, now.Add(time.Minute)))

	got, err = r.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified, "later writes keep the verified flag")
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Nil(t, got.ResetPasswordToken)

	_, err = r.FindByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
