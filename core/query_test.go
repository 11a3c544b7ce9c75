package core_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func seedPeople(t *testing.T, people *core.Model[Person], count int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		person := &Person{Name: fmt.Sprintf("person-%02d", i), Amount: i, Status: Alive}
		if i%3 == 0 {
			person.Status = Deceased
		}
		require.NoError(t, people.Persist(ctx, person))
	}
}

func TestQueryPaging(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	people, _ := newPeople()
	seedPeople(t, people, 57)

	query := people.FindAllSorted(core.SortBy("amount")).PageAt(0, 25)

	pages, err := query.PageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pages)

	first, err := query.List(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 25)
	assert.Equal(t, 0, first[0].Amount)
	assert.False(t, query.HasPreviousPage())

	more, err := query.HasNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, more)

	second, err := query.NextPage().List(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 25)
	assert.Equal(t, 25, second[0].Amount)

	third, err := query.PageAt(2, 25).List(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 7)
	more, err = query.HasNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, more)

	beyond, err := query.PageAt(3, 25).List(ctx)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	last, err := query.LastPage(ctx).List(ctx)
	require.NoError(t, err)
	assert.Len(t, last, 7)
	page, ok := query.CurrentPage()
	require.True(t, ok)
	assert.Equal(t, core.Page{Index: 2, Size: 25}, page)

	firstAgain, err := query.FirstPage().List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, firstAgain)

	query.PreviousPage()
	page, _ = query.CurrentPage()
	assert.Equal(t, 0, page.Index)

	count, err := query.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 57, count)
}

func TestQueryPageCountMatchesCount(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 31)

	for _, size := range []int{1, 4, 10, 31, 50} {
		query := people.Find("status = ?1", Alive).Page(core.OfSize(size))
		count, err := query.Count(ctx)
		require.NoError(t, err)
		pages, err := query.PageCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int((count+int64(size)-1)/int64(size)), pages, "size %d", size)
	}
}

func TestQueryPagingErrors(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()

	_, err := people.FindAll().PageCount(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = people.FindAll().PageAt(0, 0).List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = people.FindAll().PageAt(-1, 10).List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = people.FindAll().PageAt(0, 10).Range(0, 4).List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = people.FindAll().Range(5, 4).List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)

	_, err = people.FindAll().NextPage().List(ctx)
	assert.ErrorIs(t, err, core.ErrInvalidPage)
}

func TestQueryRange(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 10)

	list, err := people.FindAllSorted(core.SortBy("amount")).Range(2, 5).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, 2, list[0].Amount)
	assert.Equal(t, 5, list[3].Amount)
}

func TestQuerySingleResult(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 6)

	_, err := people.Find("status = ?1", Deceased).SingleResult(ctx)
	assert.ErrorIs(t, err, core.ErrMultipleResults)

	_, err = people.Find("name = ?1", "nobody").SingleResult(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NotErrorIs(t, err, core.ErrMultipleResults)

	_, found, err := people.Find("name = ?1", "nobody").SingleResultOptional(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	person, err := people.Find("name = ?1", "person-01").SingleResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, person.Amount)
}

func TestQueryFirstResult(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 6)

	first, err := people.FindSorted("status = ?1", core.SortBy("amount", core.Descending), Alive).FirstResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 5, first.Amount)

	absent, err := people.Find("amount > ?1", 100).FirstResult(ctx)
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, found, err := people.Find("amount > ?1", 100).FirstResultOptional(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueryTranslationErrorIsDeferred(t *testing.T) {
	ctx := context.Background()
	people, driver := newPeople()
	require.NoError(t, driver.Close(ctx))

	query := people.Find("a = ?1 and b = ?2 or c = ?3", 1, 2, 3)
	assert.ErrorIs(t, query.Err(), core.ErrMixedConnectives)

	// the closed driver would fail any call that reached it
	_, err := query.List(ctx)
	assert.ErrorIs(t, err, core.ErrMixedConnectives)
	_, err = query.Count(ctx)
	assert.ErrorIs(t, err, core.ErrMixedConnectives)
}

func TestQueryCountIsCached(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 4)

	query := people.FindAll().PageAt(0, 2)
	count, err := query.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	require.NoError(t, people.Persist(ctx, &Person{Name: "late"}))
	count, err = query.NextPage().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)

	count, err = people.FindAll().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestProjection(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	require.NoError(t, people.Persist(ctx, &Person{Name: "Ada", Firstname: "Augusta", Amount: 7}))
	require.NoError(t, people.Persist(ctx, &Person{Name: "Grace", Firstname: "Brewster", Amount: 9}))

	names, err := core.Project[PersonName](people.FindAllSorted(core.SortBy("name"))).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PersonName{
		{Name: "Ada", Firstname: "Augusta"},
		{Name: "Grace", Firstname: "Brewster"},
	}, names)

	projection, err := core.ProjectionFor[PersonName](&people.Schema().SchemaCore)
	require.NoError(t, err)
	assert.Contains(t, projection.Document, bson.E{Key: "_id", Value: 0})

	type Unknown struct{ Salary int }
	_, err = core.Project[Unknown](people.FindAll()).List(ctx)
	assert.ErrorIs(t, err, core.ErrUnmappedField)

	single, err := core.Project[PersonName](people.Find("amount = ?1", 9)).SingleResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grace", single.Name)
}

func TestQueryEvents(t *testing.T) {
	ctx := context.Background()
	people, _ := newPeople()
	seedPeople(t, people, 3)

	received := make(chan core.FindPayload, 1)
	core.On(core.EventFind, func(payload any) {
		if p, ok := payload.(core.FindPayload); ok && p.Schema.Collection == "people" {
			select {
			case received <- p:
			default:
			}
		}
	})
	defer core.Off(core.EventFind)

	_, err := people.List(ctx, "status = ?1", Alive)
	require.NoError(t, err)

	select {
	case payload := <-received:
		assert.Equal(t, 2, payload.Count)
		assert.Equal(t, "status = ?1", payload.Fragment)
	case <-time.After(time.Second):
		t.Fatal("no find event")
	}
}
