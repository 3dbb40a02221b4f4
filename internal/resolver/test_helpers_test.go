package resolver

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sakila-graphql/internal/catalog"
)

// fakeCatalog is an in-memory Sakila slice. Unlike the SQL repository it lists
// films without a category, so the grouping skip path can be exercised.
type fakeCatalog struct {
	mu sync.Mutex

	films      []catalog.Film
	genres     map[int64]catalog.Category
	actors     map[int64][]catalog.Actor
	rentals    map[int64]int
	allActors  []catalog.Actor
	counts     []catalog.GenreCount
	averages   []catalog.AverageRentalCount
	titleOrder []string

	errs map[string]error

	lastFilter catalog.Filter
	lastLimit  int
	lastOffset int

	calls       map[string]int
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func ptr[T any](v T) *T { return &v }

func newFakeCatalog() *fakeCatalog {
	action := catalog.Category{ID: 1, Name: "Action"}
	comedy := catalog.Category{ID: 5, Name: "Comedy"}

	return &fakeCatalog{
		films: []catalog.Film{
			{ID: 1, Title: "ACADEMY DINOSAUR", Description: ptr("An epic drama"), ReleaseYear: ptr(2006), Rating: ptr("PG")},
			{ID: 2, Title: "ACE GOLDFINGER", Rating: ptr("G")},
			{ID: 3, Title: "ADAPTATION HOLES", Rating: ptr("NC-17")},
			{ID: 4, Title: "AFFAIR PREJUDICE", Rating: ptr("G")},
			{ID: 5, Title: "AFRICAN EGG", Rating: ptr("G")},
		},
		genres: map[int64]catalog.Category{
			1: action,
			2: comedy,
			3: action,
			5: comedy,
		},
		actors: map[int64][]catalog.Actor{
			1: {{ID: 1, FirstName: "PENELOPE", LastName: "GUINESS"}, {ID: 10, FirstName: "CHRISTIAN", LastName: "GABLE"}},
			2: {{ID: 19, FirstName: "BOB", LastName: "FAWCETT"}},
		},
		rentals: map[int64]int{1: 2, 2: 3, 3: 6},
		allActors: []catalog.Actor{
			{ID: 1, FirstName: "PENELOPE", LastName: "GUINESS"},
			{ID: 2, FirstName: "NICK", LastName: "WAHLBERG"},
		},
		counts:   []catalog.GenreCount{{Genre: "Action", Count: 64}, {Genre: "Comedy", Count: 58}},
		averages: []catalog.AverageRentalCount{{Genre: "Action", AverageRentalCount: 4.0}},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeCatalog) record(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.errs[method]
}

func (f *fakeCatalog) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeCatalog) failWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeCatalog) track() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeCatalog) ListFilms(ctx context.Context, filter catalog.Filter, limit, offset int) ([]catalog.Film, error) {
	if err := f.record("ListFilms"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastFilter, f.lastLimit, f.lastOffset = filter, limit, offset
	f.mu.Unlock()

	var matched []catalog.Film
	for _, film := range f.films {
		if filter.HasGenre() && f.genres[film.ID].Name != filter.Genre {
			continue
		}
		if filter.HasRating() && (film.Rating == nil || *film.Rating != filter.Rating) {
			continue
		}
		matched = append(matched, film)
	}
	if offset >= len(matched) {
		return []catalog.Film{}, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeCatalog) GetFilmByID(ctx context.Context, id int64) (catalog.Film, error) {
	if err := f.record("GetFilmByID"); err != nil {
		return catalog.Film{}, err
	}
	for _, film := range f.films {
		if film.ID == id {
			return film, nil
		}
	}
	return catalog.Film{}, &catalog.NotFoundError{FilmID: id}
}

func (f *fakeCatalog) GetGenreForFilm(ctx context.Context, filmID int64) (catalog.GenreLookup, error) {
	if err := f.record("GetGenreForFilm"); err != nil {
		return catalog.GenreLookup{}, err
	}
	if c, ok := f.genres[filmID]; ok {
		return catalog.GenreFound(c), nil
	}
	return catalog.GenreAbsent(), nil
}

func (f *fakeCatalog) GetActorsForFilm(ctx context.Context, filmID int64) ([]catalog.Actor, error) {
	if err := f.record("GetActorsForFilm"); err != nil {
		return nil, err
	}
	return append([]catalog.Actor{}, f.actors[filmID]...), nil
}

func (f *fakeCatalog) GetRentalCountForFilm(ctx context.Context, filmID int64) (int, error) {
	done := f.track()
	defer done()
	if err := f.record("GetRentalCountForFilm"); err != nil {
		return 0, err
	}
	return f.rentals[filmID], nil
}

func (f *fakeCatalog) ListActors(ctx context.Context) ([]catalog.Actor, error) {
	if err := f.record("ListActors"); err != nil {
		return nil, err
	}
	return f.allActors, nil
}

func (f *fakeCatalog) CountFilmsByGenre(ctx context.Context, filter catalog.Filter) ([]catalog.GenreCount, error) {
	if err := f.record("CountFilmsByGenre"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	return f.counts, nil
}

func (f *fakeCatalog) ListTitlesSorted(ctx context.Context, filter catalog.Filter) ([]string, error) {
	if err := f.record("ListTitlesSorted"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()

	films, _ := f.ListFilms(ctx, filter, len(f.films), 0)
	titles := make([]string, 0, len(films))
	for _, film := range films {
		titles = append(titles, film.Title)
	}
	sort.Strings(titles)
	return titles, nil
}

func (f *fakeCatalog) AverageRentalCountByGenre(ctx context.Context, filter catalog.Filter) ([]catalog.AverageRentalCount, error) {
	if err := f.record("AverageRentalCountByGenre"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	return f.averages, nil
}

func (f *fakeCatalog) GenresForFilms(ctx context.Context, ids []int64) (map[int64]catalog.Category, error) {
	if err := f.record("GenresForFilms"); err != nil {
		return nil, err
	}
	out := map[int64]catalog.Category{}
	for _, id := range ids {
		if c, ok := f.genres[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeCatalog) ActorsForFilms(ctx context.Context, ids []int64) (map[int64][]catalog.Actor, error) {
	if err := f.record("ActorsForFilms"); err != nil {
		return nil, err
	}
	out := map[int64][]catalog.Actor{}
	for _, id := range ids {
		if a, ok := f.actors[id]; ok {
			out[id] = append([]catalog.Actor{}, a...)
		}
	}
	return out, nil
}

func (f *fakeCatalog) RentalCountsForFilms(ctx context.Context, ids []int64) (map[int64]int, error) {
	if err := f.record("RentalCountsForFilms"); err != nil {
		return nil, err
	}
	out := map[int64]int{}
	for _, id := range ids {
		if n, ok := f.rentals[id]; ok && n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

// perFilmOnly hides the batch methods of a fakeCatalog.
func perFilmOnly(f *fakeCatalog) Catalog {
	return struct{ Catalog }{f}
}
