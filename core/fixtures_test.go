package core_test

import (
	"testing"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/leandroluk/docorm/driver/memory"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	Alive    Status = "Alive"
	Deceased Status = "Deceased"
)

type Person struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Firstname string             `bson:"firstname"`
	Lastname  string             `bson:"lastname,omitempty"`
	Amount    int                `bson:"amount"`
	Status    Status             `bson:"status"`
	Birth     time.Time          `bson:"birth"`
	Created   time.Time          `bson:"created_at"`
	Updated   time.Time          `bson:"updated_at"`
}

// Account uses a caller-assigned identifier.
type Account struct {
	Number  string `bson:"_id"`
	Owner   string `bson:"owner"`
	Balance int64  `bson:"balance"`
}

func (Account) CollectionBinding() core.Binding {
	return core.Binding{Collection: "accounts"}
}

type PersonName struct {
	Name      string
	Firstname string
}

func personSchema() *core.SchemaMeta[Person] {
	return core.Schema[Person](
		core.Table[Person]("people"),
		core.OverrideField(func(p *Person) *time.Time { return &p.Created }, core.CreatedAt()),
		core.OverrideField(func(p *Person) *time.Time { return &p.Updated }, core.UpdatedAt()),
	)
}

func newPeople() (*core.Model[Person], *memory.MemoryDriver) {
	driver := memory.NewMemoryDriver("test")
	return core.NewModel(personSchema(), driver), driver
}

func assertSamePerson(t *testing.T, want, got Person) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Firstname, got.Firstname)
	assert.Equal(t, want.Lastname, got.Lastname)
	assert.Equal(t, want.Amount, got.Amount)
	assert.Equal(t, want.Status, got.Status)
	assert.True(t, want.Birth.Equal(got.Birth), "birth %s != %s", want.Birth, got.Birth)
	assert.True(t, want.Created.Equal(got.Created), "created %s != %s", want.Created, got.Created)
	assert.True(t, want.Updated.Equal(got.Updated), "updated %s != %s", want.Updated, got.Updated)
}
