package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		switch {
		case q.Get("list") == "search":
			assert.Equal(t, "Airbus", q.Get("srsearch"))
			w.Write([]byte(`{"query":{"search":[{"title":"Airbus"},{"title":"Airbus A320 family"}]}}`))
		case q.Get("titles") == "Airbus":
			assert.Equal(t, "info|pageprops|extracts", q.Get("prop"))
			w.Write([]byte(`{"query":{"pages":[{"title":"Airbus",
				"fullurl":"https://en.wikipedia.org/wiki/Airbus",
				"extract":" Airbus SE is a European aerospace corporation. \n",
				"pageprops":{"wikibase_item":"Q67"}}]}}`))
		case q.Get("titles") == "Mercury":
			w.Write([]byte(`{"query":{"pages":[{"title":"Mercury","fullurl":"https://en.wikipedia.org/wiki/Mercury",
				"pageprops":{"disambiguation":"","wikibase_item":"Q1"}}]}}`))
		default:
			w.Write([]byte(`{"query":{"pages":[{"title":"Nothing","missing":true}]}}`))
		}
	})
	mux.HandleFunc("/entity/Q67.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"entities":{"Q67":{"id":"Q67",
			"labels":{"en":{"language":"en","value":"Airbus"}},
			"claims":{
				"P17":[{"mainsnak":{"datavalue":{"type":"wikibase-entityid","value":{"id":"Q142"}}}}],
				"P856":[{"mainsnak":{"datavalue":{"type":"string","value":"https://www.airbus.com"}}}],
				"P2139":[{"mainsnak":{"datavalue":{"type":"quantity","value":{"amount":"+65446000000","unit":"http://www.wikidata.org/entity/Q4916"}}},
					"qualifiers":{"P585":[{"datavalue":{"type":"time","value":{"time":"+2023-00-00T00:00:00Z"}}}]}}],
				"P1128":[{"mainsnak":{"datavalue":{"type":"quantity","value":{"amount":"+1.5E5","unit":"1"}}}}]
			}}}}`))
	})
	mux.HandleFunc("/entity/Q2.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"entities":{"Q3":{"id":"Q3"}}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) Client {
	return NewClient(WithAPIURL(srv.URL+"/w/api.php"), WithEntityURL(srv.URL+"/entity/"))
}

func TestSearch(t *testing.T) {
	srv := newServer(t)

	titles, err := newTestClient(srv).Search(context.Background(), "Airbus")
	require.NoError(t, err)
	assert.Equal(t, []string{"Airbus", "Airbus A320 family"}, titles)
}

func TestPage(t *testing.T) {
	srv := newServer(t)

	p, err := newTestClient(srv).Page(context.Background(), "Airbus")
	require.NoError(t, err)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Airbus", p.URL)
	assert.Equal(t, "Q67", p.QID)
	assert.Equal(t, "Airbus SE is a European aerospace corporation.", p.Summary)
}

func TestPageErrors(t *testing.T) {
	srv := newServer(t)
	c := newTestClient(srv)

	_, err := c.Page(context.Background(), "Mercury")
	assert.True(t, eris.Is(err, ErrDisambiguation))

	_, err = c.Page(context.Background(), "Nothing")
	assert.True(t, eris.Is(err, ErrPageMissing))
}

func TestEntityClaims(t *testing.T) {
	srv := newServer(t)

	e, err := newTestClient(srv).Entity(context.Background(), "Q67")
	require.NoError(t, err)

	label, ok := e.Label("en")
	assert.True(t, ok)
	assert.Equal(t, "Airbus", label)

	id, ok := e.Claims["P17"][0].MainSnak.EntityID()
	assert.True(t, ok)
	assert.Equal(t, "Q142", id)

	site, ok := e.Claims["P856"][0].MainSnak.String()
	assert.True(t, ok)
	assert.Equal(t, "https://www.airbus.com", site)

	turnover := e.Claims["P2139"][0]
	amount, unit, ok := turnover.MainSnak.Quantity()
	assert.True(t, ok)
	assert.Equal(t, int64(65446000000), amount)
	assert.Equal(t, "Q4916", unit)
	year, ok := turnover.Qualifiers["P585"][0].Year()
	assert.True(t, ok)
	assert.Equal(t, 2023, year)

	employees, unit, ok := e.Claims["P1128"][0].MainSnak.Quantity()
	assert.True(t, ok)
	assert.Equal(t, int64(150000), employees)
	assert.Empty(t, unit)
}

func TestEntityFollowsRedirect(t *testing.T) {
	srv := newServer(t)

	e, err := newTestClient(srv).Entity(context.Background(), "Q2")
	require.NoError(t, err)
	assert.Equal(t, "Q3", e.ID)
}

func TestSnakWrongType(t *testing.T) {
	var s Snak
	_, ok := s.String()
	assert.False(t, ok)
	_, ok = s.Year()
	assert.False(t, ok)
}
