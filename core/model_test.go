package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leandroluk/docorm/core"
	"github.com/leandroluk/docorm/driver/memory"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestModel(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

type ModelSuite struct {
	suite.Suite

	ctx    context.Context
	cancel context.CancelFunc
	driver *memory.MemoryDriver
	people *core.Model[Person]
}

func (s *ModelSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)
	s.people, s.driver = newPeople()
}

func (s *ModelSuite) TearDownTest() {
	s.cancel()
}

func (s *ModelSuite) seed(count int) []*Person {
	list := make([]*Person, 0, count)
	for i := 0; i < count; i++ {
		status := Alive
		if i%2 == 1 {
			status = Deceased
		}
		list = append(list, &Person{
			Name:      fmt.Sprintf("person-%02d", i),
			Firstname: "First",
			Lastname:  fmt.Sprintf("Last%02d", i%10),
			Amount:    i,
			Status:    status,
		})
	}
	s.Require().NoError(s.people.PersistAll(s.ctx, list...))
	return list
}

func (s *ModelSuite) TestPersistThenFindByID() {
	person := &Person{
		Name:      "Loïc",
		Firstname: "Loïc",
		Lastname:  "Doe",
		Amount:    42,
		Status:    Alive,
		Birth:     time.Date(1990, 3, 4, 5, 6, 7, 8_000_000, time.UTC),
	}
	s.Require().NoError(s.people.Persist(s.ctx, person))
	s.False(person.ID.IsZero())
	s.False(person.Created.IsZero())
	s.Equal(person.Created, person.Updated)

	found, err := s.people.FindByID(s.ctx, person.ID)
	s.Require().NoError(err)
	assertSamePerson(s.T(), *person, *found)
}

func (s *ModelSuite) TestFindByIDAbsent() {
	_, err := s.people.FindByID(s.ctx, primitive.NewObjectID())
	s.ErrorIs(err, core.ErrNotFound)

	_, found, err := s.people.FindByIDOptional(s.ctx, primitive.NewObjectID())
	s.NoError(err)
	s.False(found)
}

func (s *ModelSuite) TestCallerAssignedIdentifier() {
	accounts := core.NewModel(core.SchemaFor[Account](), s.driver)
	s.Equal("accounts", accounts.Schema().Collection)

	err := accounts.Persist(s.ctx, &Account{Owner: "nobody"})
	s.ErrorIs(err, core.ErrMissingID)

	number := uuid.NewString()
	s.Require().NoError(accounts.Persist(s.ctx, &Account{Number: number, Owner: "ada", Balance: 10}))

	account, err := accounts.FindByID(s.ctx, number)
	s.Require().NoError(err)
	s.Equal(Account{Number: number, Owner: "ada", Balance: 10}, *account)

	err = accounts.Persist(s.ctx, &Account{Number: number, Owner: "twice"})
	s.ErrorIs(err, memory.ErrDuplicateKey)
}

func (s *ModelSuite) TestCountMatchesList() {
	s.seed(20)

	for _, query := range []string{"", "status = ?1", "amount >= ?1", "lastname is not null"} {
		var params []any
		switch query {
		case "status = ?1":
			params = []any{Alive}
		case "amount >= ?1":
			params = []any{15}
		}
		count, err := s.people.CountWhere(s.ctx, query, params...)
		s.Require().NoError(err)
		list, err := s.people.List(s.ctx, query, params...)
		s.Require().NoError(err)
		s.Equal(int(count), len(list), query)
	}
}

func (s *ModelSuite) TestUpdate() {
	person := &Person{Name: "Ada", Status: Alive}
	s.Require().NoError(s.people.Persist(s.ctx, person))
	created := person.Created

	person.Status = Deceased
	s.Require().NoError(s.people.Update(s.ctx, person))
	s.Equal(created, person.Created)

	found, err := s.people.FindByID(s.ctx, person.ID)
	s.Require().NoError(err)
	s.Equal(Deceased, found.Status)

	err = s.people.Update(s.ctx, &Person{ID: primitive.NewObjectID(), Name: "ghost"})
	s.ErrorIs(err, core.ErrNotFound)

	err = s.people.Update(s.ctx, &Person{Name: "no id"})
	s.ErrorIs(err, core.ErrMissingID)
}

func (s *ModelSuite) TestPersistOrUpdateTwice() {
	id := primitive.NewObjectID()
	s.Require().NoError(s.people.PersistOrUpdate(s.ctx, &Person{ID: id, Name: "first", Amount: 1}))
	s.Require().NoError(s.people.PersistOrUpdate(s.ctx, &Person{ID: id, Name: "second", Amount: 2}))

	count, err := s.people.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)

	found, err := s.people.FindByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("second", found.Name)
	s.Equal(2, found.Amount)
	s.False(found.Created.IsZero())
}

func (s *ModelSuite) TestPersistOrUpdateGeneratesIdentifier() {
	person := &Person{Name: "fresh"}
	s.Require().NoError(s.people.PersistOrUpdate(s.ctx, person))
	s.False(person.ID.IsZero())

	_, found, err := s.people.FindByIDOptional(s.ctx, person.ID)
	s.NoError(err)
	s.True(found)
}

func (s *ModelSuite) TestPersistOrUpdateFailureKeepsIdentifierUnset() {
	schema := personSchema()
	people := core.NewModel(schema, s.driver)
	schema.RegisterPreHook(core.PreUpsert, func(p *Person) error {
		return fmt.Errorf("upsert refused")
	})

	person := &Person{Name: "rejected"}
	s.ErrorContains(people.PersistOrUpdate(s.ctx, person), "upsert refused")
	s.True(person.ID.IsZero())

	s.Require().NoError(s.driver.Close(s.ctx))
	person = &Person{Name: "offline"}
	s.ErrorIs(s.people.PersistOrUpdate(s.ctx, person), memory.ErrClosed)
	s.True(person.ID.IsZero())
}

func (s *ModelSuite) TestDeleteAbsentLeavesCollectionUnchanged() {
	s.seed(3)

	err := s.people.Delete(s.ctx, &Person{ID: primitive.NewObjectID()})
	s.ErrorIs(err, core.ErrNotFound)

	count, err := s.people.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(3, count)
}

func (s *ModelSuite) TestDelete() {
	list := s.seed(3)

	s.Require().NoError(s.people.Delete(s.ctx, list[1]))
	_, found, err := s.people.FindByIDOptional(s.ctx, list[1].ID)
	s.NoError(err)
	s.False(found)

	deleted, err := s.people.DeleteByID(s.ctx, list[0].ID)
	s.NoError(err)
	s.True(deleted)
	deleted, err = s.people.DeleteByID(s.ctx, list[0].ID)
	s.NoError(err)
	s.False(deleted)

	count, err := s.people.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *ModelSuite) TestDeleteWhereAndAll() {
	s.seed(10)

	removed, err := s.people.DeleteWhere(s.ctx, "status = ?1", Deceased)
	s.Require().NoError(err)
	s.EqualValues(5, removed)

	_, err = s.people.DeleteWhere(s.ctx, "a = ?1 and b = ?2 or c = ?3", 1, 2, 3)
	s.ErrorIs(err, core.ErrMixedConnectives)

	removed, err = s.people.DeleteAll(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(5, removed)
}

func (s *ModelSuite) TestSortedListing() {
	s.seed(5)

	list, err := s.people.ListAllSorted(s.ctx, core.SortBy("amount", core.Descending))
	s.Require().NoError(err)
	s.Require().Len(list, 5)
	for i, person := range list {
		s.Equal(4-i, person.Amount)
	}

	list, err = s.people.ListSorted(s.ctx, "status = ?1", core.SortBy("Name").Descending(), Alive)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("person-04", list[0].Name)
	s.Equal("person-00", list[2].Name)
}

func (s *ModelSuite) TestOrderBySuffixPrecedesExplicitSort() {
	s.seed(20)

	query := s.people.FindSorted("status = ?1 order by lastname", core.SortBy("amount", core.Descending), Alive)
	s.Require().NoError(query.Err())
	s.Equal("lastname", query.SortDocument()[0].Key)
	s.Equal("amount", query.SortDocument()[1].Key)

	list, err := query.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 10)
	s.Equal("Last00", list[0].Lastname)
	s.Equal(10, list[0].Amount)
	s.Equal(0, list[1].Amount)
}

func (s *ModelSuite) TestStream() {
	s.seed(6)

	seen := 0
	for person, err := range s.people.StreamAll(s.ctx) {
		s.Require().NoError(err)
		s.NotEmpty(person.Name)
		seen++
		if seen == 4 {
			break
		}
	}
	s.Equal(4, seen)

	for _, err := range s.people.Stream(s.ctx, "salary = ?1", 1) {
		s.ErrorIs(err, core.ErrUnmappedField)
	}
}

func (s *ModelSuite) TestFilterBuilder() {
	s.seed(10)

	query := s.people.Filter(func(f core.Filter[Person]) []*core.Condition {
		return []*core.Condition{
			f.Where(func(p *Person) any { return &p.Amount }).Gte(4),
			f.Where(func(p *Person) any { return &p.Status }).Eq(Alive),
		}
	})
	list, err := query.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 3)
	for _, person := range list {
		s.GreaterOrEqual(person.Amount, 4)
		s.Equal(Alive, person.Status)
	}
}

func (s *ModelSuite) TestHooks() {
	schema := personSchema()
	people := core.NewModel(schema, s.driver)

	var calls []string
	schema.RegisterPreHook(core.PreInsert, func(p *Person) error {
		calls = append(calls, "pre-insert")
		p.Lastname = "Hooked"
		return nil
	})
	schema.RegisterPostHook(core.PostFind, func(p *Person) error {
		calls = append(calls, "post-find")
		return nil
	})
	schema.RegisterPreHook(core.PreDelete, func(p *Person) error {
		return fmt.Errorf("delete forbidden")
	})

	person := &Person{Name: "Ada"}
	s.Require().NoError(people.Persist(s.ctx, person))
	found, err := people.FindByID(s.ctx, person.ID)
	s.Require().NoError(err)
	s.Equal("Hooked", found.Lastname)
	s.Equal([]string{"pre-insert", "post-find"}, calls)

	s.ErrorContains(people.Delete(s.ctx, person), "delete forbidden")
	count, err := people.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)
}

func (s *ModelSuite) TestWithTenant() {
	s.seed(2)

	tenant := s.people.WithTenant("tenant-a")
	count, err := tenant.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	s.Require().NoError(tenant.Persist(s.ctx, &Person{Name: "isolated"}))
	count, err = s.people.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, count)
}

func (s *ModelSuite) TestRepository() {
	repo := core.RepositoryOf[Person, primitive.ObjectID](s.people)

	person := &Person{Name: "Ada", Status: Alive}
	s.Require().NoError(repo.Persist(s.ctx, person))

	found, err := repo.FindByID(s.ctx, person.ID)
	s.Require().NoError(err)
	s.Equal("Ada", found.Name)

	single, err := repo.Find("name", "Ada").SingleResult(s.ctx)
	s.Require().NoError(err)
	s.Equal(person.ID, single.ID)

	deleted, err := repo.DeleteByID(s.ctx, person.ID)
	s.Require().NoError(err)
	s.True(deleted)

	accounts := core.NewRepository[Account, string](s.driver)
	s.Require().NoError(accounts.PersistOrUpdate(s.ctx, &Account{Number: "A-1", Owner: "ada"}))
	count, err := accounts.Count(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, count)
}
