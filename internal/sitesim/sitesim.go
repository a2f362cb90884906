// Package sitesim serves a small imitation of the two remote sites: company pages with
// DataTables AJAX endpoints, and a floorsheet table paged by ASP.NET-style postback.
package sitesim

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const (
	Token         = "sim-csrf-token"
	sessionCookie = "sim_session"

	pageFieldID  = "ctl00_ContentPlaceHolder1_PagerControl1_hdnCurrentPage"
	submitID     = "ctl00_ContentPlaceHolder1_PagerControl1_btnPaging"
	pageFieldTag = "ctl00$ContentPlaceHolder1$PagerControl1$hdnCurrentPage"
	submitName   = "ctl00$ContentPlaceHolder1$PagerControl1$btnPaging"
)

// Company is one listed company and its remote data, newest rows first.
type Company struct {
	ID          string
	Prices      []map[string]any
	Dividends   []map[string]any
	RightShares []map[string]any
	// HideID leaves #companyid out of the company page.
	HideID bool
}

// Site is an http.Handler. Mutate its exported fields before serving.
type Site struct {
	Companies map[string]*Company

	// Floorsheet holds one slice of trades per postback page.
	Floorsheet [][]map[string]string
	// MalformedNextOn breaks the next-page onclick on that page (1-based).
	MalformedNextOn int
	// NotReady makes an AJAX path answer 202 that many times before serving.
	NotReady map[string]int
	// FailAfter makes an AJAX path answer 500 once start reaches the value.
	FailAfter map[string]int
	// BrokenCompanies answer their company page with 500.
	BrokenCompanies map[string]bool
	// OmitToken leaves the csrf meta tag out of company pages.
	OmitToken bool
	// TodayDate is the market date of the today-share-price page; empty renders the
	// page without it, as on a closed market.
	TodayDate string
	// Today holds the rows of that page.
	Today []TodayRow

	mu       sync.Mutex
	requests []Request
	router   *mux.Router
}

// TodayRow is one company on the today-share-price page.
type TodayRow struct {
	Symbol, Open, High, Low, Close, Vol, Turnover, DiffPct string
}

// Request is one logged AJAX or postback call.
type Request struct {
	Path    string
	Start   int
	Length  int
	Draw    int
	Company string
	Page    int
	At      time.Time
}

func New() *Site {
	s := &Site{
		Companies:       map[string]*Company{},
		NotReady:        map[string]int{},
		FailAfter:       map[string]int{},
		BrokenCompanies: map[string]bool{},
	}
	r := mux.NewRouter()
	r.HandleFunc("/company/{symbol}", s.companyPage).Methods(http.MethodGet)
	r.HandleFunc("/company-price-history", s.ajax(func(c *Company) []map[string]any { return c.Prices })).Methods(http.MethodPost)
	r.HandleFunc("/company-dividend", s.ajax(func(c *Company) []map[string]any { return c.Dividends })).Methods(http.MethodPost)
	r.HandleFunc("/company-rightshare", s.ajax(func(c *Company) []map[string]any { return c.RightShares })).Methods(http.MethodPost)
	r.HandleFunc("/Floorsheet.aspx", s.floorsheet).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/today-share-price", s.todayPage).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Requests returns the AJAX and postback calls seen so far.
func (s *Site) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Site) log(r Request) {
	r.At = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

var companyTmpl = template.Must(template.New("company").Parse(`<!DOCTYPE html>
<html><head>{{if .Token}}<meta name="_token" content="{{.Token}}">{{end}}<title>{{.Symbol}}</title></head>
<body>{{if .ID}}<div id="companyid" style="display:none">{{.ID}}</div>{{end}}
<h1>{{.Symbol}}</h1></body></html>`))

func (s *Site) companyPage(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	s.mu.Lock()
	broken := s.BrokenCompanies[symbol]
	c, ok := s.Companies[symbol]
	s.mu.Unlock()

	if broken {
		http.Error(w, "upstream error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s-" + symbol, Path: "/"})
	data := struct{ Symbol, Token, ID string }{Symbol: symbol}
	if !s.OmitToken {
		data.Token = Token
	}
	if !c.HideID {
		data.ID = c.ID
	}
	if err := companyTmpl.Execute(w, data); err != nil {
		slog.Error("Failed to render company page", "error", err)
	}
}

func (s *Site) ajax(rows func(*Company) []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, err := r.Cookie(sessionCookie); err != nil {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		if !s.OmitToken && r.Header.Get("X-CSRF-TOKEN") != Token {
			http.Error(w, "csrf mismatch", 419)
			return
		}

		start, _ := strconv.Atoi(r.FormValue("start"))
		length, _ := strconv.Atoi(r.FormValue("length"))
		draw, _ := strconv.Atoi(r.FormValue("draw"))
		companyID := r.FormValue("company")
		s.log(Request{Path: r.URL.Path, Start: start, Length: length, Draw: draw, Company: companyID})

		s.mu.Lock()
		if s.NotReady[r.URL.Path] > 0 {
			s.NotReady[r.URL.Path]--
			s.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			return
		}
		failAt, fails := s.FailAfter[r.URL.Path]
		var all []map[string]any
		for _, c := range s.Companies {
			if c.ID == companyID {
				all = rows(c)
			}
		}
		s.mu.Unlock()

		if fails && start >= failAt {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}

		window := []map[string]any{}
		if length <= 0 {
			length = 10
		}
		if start < len(all) {
			end := min(start+length, len(all))
			window = all[start:end]
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"draw":            draw,
			"recordsTotal":    len(all),
			"recordsFiltered": len(all),
			"data":            window,
		}); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

var floorsheetTmpl = template.Must(template.New("floorsheet").Parse(`<!DOCTYPE html>
<html><body><form method="post" action="Floorsheet.aspx" id="aspnetForm">
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="{{.ViewState}}">
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="ev-{{.Page}}">
<input type="hidden" name="{{.PageField}}" id="` + pageFieldID + `" value="{{.Page}}">
<input type="submit" name="` + submitName + `" id="` + submitID + `" value="" style="display:none">
<table class="table table-bordered table-striped">
<thead><tr><th>#</th><th>Transact. No.</th><th>Symbol</th><th>Buyer</th><th>Seller</th><th>Quantity</th><th>Rate</th><th>Amount</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.sn}}</td><td>{{.contract_no}}</td><td>{{.stock_symbol}}</td><td>{{.buyer}}</td><td>{{.seller}}</td><td>{{.quantity}}</td><td>{{.rate}}</td><td>{{.amount}}</td></tr>
{{end}}<tr><td colspan="5">Total</td><td>-</td></tr>
</tbody></table>
{{if .Next}}<a href="#" title="Next Page" onclick="{{.Next}}">Next</a>{{end}}
</form></body></html>`))

func (s *Site) floorsheet(w http.ResponseWriter, r *http.Request) {
	page := 1
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, ok := r.PostForm[submitName]; !ok {
			http.Error(w, "missing submit control", http.StatusBadRequest)
			return
		}
		var field string
		for k := range r.PostForm {
			if strings.HasPrefix(k, pageFieldTag) {
				field = k
			}
		}
		p, err := strconv.Atoi(r.PostForm.Get(field))
		if field == "" || err != nil {
			http.Error(w, "missing page field", http.StatusBadRequest)
			return
		}
		// The viewstate must be the one rendered with the previous page.
		if r.PostForm.Get("__VIEWSTATE") != viewState(p-1) {
			http.Error(w, "viewstate mismatch", http.StatusBadRequest)
			return
		}
		page = p
	}
	s.log(Request{Path: r.URL.Path, Page: page})

	s.mu.Lock()
	pages := s.Floorsheet
	malformed := s.MalformedNextOn
	s.mu.Unlock()

	var rows []map[string]string
	if page-1 < len(pages) {
		rows = pages[page-1]
	}
	next := ""
	if page < len(pages) {
		next = fmt.Sprintf("changePageIndex('%d', '%s', '%s'); return false;", page+1, pageFieldID, submitID)
		if page == malformed {
			next = "changePageIndex(undefined); return false;"
		}
	}

	if err := floorsheetTmpl.Execute(w, map[string]any{
		"ViewState": viewState(page),
		"Page":      page,
		// The field name changes with every render; only its id is stable.
		"PageField": fmt.Sprintf("%s$r%d", pageFieldTag, page),
		"Rows":      rows,
		"Next":      template.JS(next),
	}); err != nil {
		slog.Error("Failed to render floorsheet", "error", err)
	}
}

var todayTmpl = template.Must(template.New("today").Parse(`<!DOCTYPE html>
<html><body>{{if .Date}}<h5>As of : <span class="text-org">{{.Date}}</span></h5>{{end}}
<table class="table table-bordered" id="headFixed">
<thead><tr><th>S.No</th><th>Symbol</th><th>Conf.</th><th>Open</th><th>High</th><th>Low</th><th>Close</th><th>Vol</th><th>Turnover</th><th>Diff %</th></tr></thead>
<tbody>
{{range $i, $r := .Rows}}<tr><td>{{$i}}</td><td>{{$r.Symbol}}</td><td>61.2</td><td>{{$r.Open}}</td><td>{{$r.High}}</td><td>{{$r.Low}}</td><td>{{$r.Close}}</td><td>{{$r.Vol}}</td><td>{{$r.Turnover}}</td><td>{{$r.DiffPct}}</td></tr>
{{end}}</tbody></table></body></html>`))

func (s *Site) todayPage(w http.ResponseWriter, r *http.Request) {
	s.log(Request{Path: r.URL.Path})

	s.mu.Lock()
	data := map[string]any{"Date": s.TodayDate, "Rows": s.Today}
	s.mu.Unlock()

	if err := todayTmpl.Execute(w, data); err != nil {
		slog.Error("Failed to render today's prices", "error", err)
	}
}

func viewState(page int) string {
	return fmt.Sprintf("vs-%d", page)
}
