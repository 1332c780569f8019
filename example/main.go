package main

import (
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/aadithya-v/tablenav"
	"github.com/aadithya-v/tablenav/navhttp"
	"github.com/aadithya-v/tablenav/store"
)

// Options are the command line flags.
type Options struct {
	Addr      string `long:"addr" default:":8080" description:"listen address"`
	Config    string `long:"config" description:"optional YAML config file"`
	Store     string `long:"store" default:"memory" choice:"memory" choice:"sqlite" choice:"mysql" choice:"redis" description:"session backend"`
	MySQLDSN  string `long:"mysql-dsn" description:"user:password@tcp(host:port)/database"`
	RedisAddr string `long:"redis-addr" default:"localhost:6379" description:"Redis address"`
	Debug     bool   `long:"debug" description:"enable debug logging"`
}

func main() {
	opts := &Options{}
	if _, err := flags.Parse(opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	if err := run(opts, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// run serves until the listener fails. The navigator is closed on return.
func run(opts *Options, log zerolog.Logger) error {
	cfg, err := tablenav.LoadConfig(opts.Config)
	if err != nil {
		return err
	}
	cfg.Logger = &log

	sessions, err := openStore(opts, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s session store: %w", opts.Store, err)
	}
	cfg.SessionStore = sessions

	nav, err := tablenav.New(cfg)
	if err != nil {
		sessions.Close()
		return err
	}
	defer nav.Close()

	app := newApp(nav, log)
	if app.reports == nil {
		log.Warn().Str("store", opts.Store).Msg("saved reports disabled")
	}

	log.Info().Str("addr", opts.Addr).Str("store", opts.Store).Msg("tablenav example server running")
	log.Info().Msg("  GET  /products?search=&price_min=&price_max=&sort=name|-price&per_page=25&page=1")
	log.Info().Msg("                                                        - list products, issues a nav token")
	log.Info().Msg("  GET  /products/:id?nav=TOKEN                          - show a product with previous/next")
	log.Info().Msg("  POST /products/:id?nav=TOKEN  (_save_next=1)          - save and go to the next product")
	log.Info().Msg("  POST /bulk/products/delete  selected_items=1&...      - delete selected products")
	log.Info().Msg("  GET  /navigation                                      - list live navigation contexts")
	log.Info().Msg("  POST /reports  {name, visibility, filter_params}      - save the current filters as a report")
	log.Info().Msg("  GET  /reports/:id                                     - open a saved report")
	log.Info().Msg("  POST /reports/:id/favorite                            - toggle a favorite report")

	return app.router().Run(opts.Addr)
}

func newApp(nav *tablenav.Navigator, log zerolog.Logger) *app {
	a := &app{nav: nav, products: newCatalog(), log: log}
	// Stores without report tables leave reports nil.
	a.reports, _ = nav.Reports()
	return a
}

func (a *app) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), ownerMiddleware())

	router.GET("/products", a.listProducts)
	router.GET("/products/:id", a.showProduct)
	router.POST("/products/:id", a.saveProduct)
	router.POST("/bulk/products/delete", a.bulkDelete)
	router.GET("/navigation", a.listContexts)

	if a.reports != nil {
		reports := router.Group("/reports")
		reports.POST("", a.saveReport)
		reports.GET("/:id", a.openReport)
		reports.POST("/:id/favorite", a.toggleFavorite)
		reports.POST("/:id/deactivate", a.deactivateReport)
	}
	return router
}

// openStore builds the session backend chosen on the command line.
func openStore(opts *Options, cfg tablenav.Config) (store.SessionStore, error) {
	switch opts.Store {
	case "sqlite":
		return store.NewSQLite(cfg.DatabasePath)
	case "mysql":
		if opts.MySQLDSN == "" {
			return nil, fmt.Errorf("--mysql-dsn is required for the mysql store")
		}
		return store.NewMySQLFromDSN(opts.MySQLDSN)
	case "redis":
		return store.NewRedisFromConfig(store.RedisConfig{
			Addr:       opts.RedisAddr,
			Expiration: 24 * time.Hour,
		})
	default:
		return store.NewMemoryStore(store.MemoryOptions{}), nil
	}
}

// ownerMiddleware adapts navhttp.Middleware to gin.
func ownerMiddleware() gin.HandlerFunc {
	mw := navhttp.Middleware(navhttp.OwnerConfig{})
	return func(c *gin.Context) {
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
	}
}

type app struct {
	nav      *tablenav.Navigator
	reports  *tablenav.Reports // nil when the store cannot hold reports
	products *catalog
	log      zerolog.Logger
}

const productsView = "products"

var productFilters = []navhttp.FilterField{
	{Name: "price", Range: true},
	{Name: navhttp.SearchParam},
}

func (a *app) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	ownerID := navhttp.OwnerID(c.Request)

	perPage, err := a.nav.Preferences().PerPage(ctx, ownerID, navhttp.PerPage(c.Request), tablenav.PerPageOptions{
		Options: []int{10, 25, 50, 100},
		Default: 25,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := a.products.filter(
		c.Query(navhttp.SearchParam),
		c.DefaultQuery("sort", "name"),
		c.Query("price_min"),
		c.Query("price_max"),
	)
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = strconv.Itoa(p.ID)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	page = max(page, 1)
	start := min((page-1)*perPage, len(rows))
	end := min(start+perPage, len(rows))

	response := gin.H{
		"products":         rows[start:end],
		"total":            len(rows),
		"page":             page,
		"current_per_page": perPage,
		"per_page_options": []int{10, 25, 50, 100},
		"active_filters":   navhttp.ActiveFilters(c.Request, productFilters...),
		"current_filters":  navhttp.CurrentFilterParams(c.Request),
	}

	if a.reports != nil {
		available, err := a.reports.Available(ctx, productsView, reportUser(c))
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to list reports")
		} else {
			response["reports"] = available
		}
	}

	// A fresh context per render so the ids match the current filter.
	if !navhttp.IsBot(c.Request) {
		current := ""
		if start < end {
			current = ids[start]
		}
		token, err := a.nav.CreateContext(ctx, ownerID, tablenav.Listing{
			IDs:             ids,
			OriginReference: c.Request.URL.RequestURI(),
			CurrentID:       current,
		})
		if err != nil {
			// Navigation is optional; the listing still renders.
			a.log.Warn().Err(err).Msg("failed to create navigation context")
		} else {
			response["nav"] = token
		}
	}

	c.JSON(http.StatusOK, response)
}

func (a *app) showProduct(c *gin.Context) {
	p, ok := a.products.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	token := navhttp.Token(c.Request)
	nb, err := a.nav.GetNeighbors(c.Request.Context(), navhttp.OwnerID(c.Request), token, c.Param("id"))
	if err != nil {
		a.log.Warn().Err(err).Msg("navigation lookup failed")
	}

	response := gin.H{"product": p}
	if nb.Found() {
		response["navigation"] = gin.H{
			"position": nb.Position,
			"total":    nb.Total,
			"previous": linkOrNil(nb.HasPrevious(), nb.PreviousID, token),
			"next":     linkOrNil(nb.HasNext(), nb.NextID, token),
		}
	}
	c.JSON(http.StatusOK, response)
}

func (a *app) saveProduct(c *gin.Context) {
	id := c.Param("id")
	if !a.products.rename(id, c.PostForm("name")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	// Navigation failures never block the save.
	token := navhttp.Token(c.Request)
	nb, err := a.nav.GetNeighbors(c.Request.Context(), navhttp.OwnerID(c.Request), token, id)
	if err != nil {
		a.log.Warn().Err(err).Msg("navigation lookup failed")
	}

	c.Redirect(http.StatusSeeOther, navhttp.SaveAndNextURL(c.Request, nb, token, productURL, "/products"))
}

func (a *app) bulkDelete(c *gin.Context) {
	selected := navhttp.SelectedItems(c.Request)
	if len(selected) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No items were selected."})
		return
	}

	deleted := a.products.delete(selected)

	// Listings rendered before the delete now point at missing records.
	if token := navhttp.Token(c.Request); token != "" {
		if err := a.nav.DeleteContext(c.Request.Context(), navhttp.OwnerID(c.Request), token); err != nil {
			a.log.Warn().Err(err).Msg("failed to drop navigation context")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Successfully deleted %d item(s).", deleted)})
}

func (a *app) listContexts(c *gin.Context) {
	contexts, err := a.nav.ListContexts(c.Request.Context(), navhttp.OwnerID(c.Request))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, len(contexts))
	for i, nc := range contexts {
		out[i] = gin.H{
			"token":      nc.Token,
			"origin":     nc.OriginReference,
			"stored":     len(nc.OrderedIDs),
			"total":      nc.TotalCount,
			"created_at": nc.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"contexts": out, "count": len(out)})
}

type saveReportRequest struct {
	Name          string            `json:"name" binding:"required"`
	Description   string            `json:"description"`
	Visibility    string            `json:"visibility"`
	AllowedGroups []string          `json:"allowed_groups"`
	FilterParams  map[string]string `json:"filter_params"`
}

func (a *app) saveReport(c *gin.Context) {
	var req saveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := a.reports.Save(c.Request.Context(), reportUser(c), tablenav.Report{
		Name:          req.Name,
		Description:   req.Description,
		ViewName:      productsView,
		FilterParams:  req.FilterParams,
		Visibility:    tablenav.Visibility(req.Visibility),
		AllowedGroups: req.AllowedGroups,
	})
	if err != nil {
		c.JSON(reportStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": fmt.Sprintf("Report %q saved successfully.", report.Name),
		"report":  report,
		"url":     report.URL("/products"),
	})
}

func (a *app) openReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found."})
		return
	}

	report, err := a.reports.Get(c.Request.Context(), reportUser(c), id)
	if err != nil {
		c.JSON(reportStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusSeeOther, report.URL("/products"))
}

func (a *app) toggleFavorite(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found."})
		return
	}

	added, err := a.reports.ToggleFavorite(c.Request.Context(), reportUser(c), id)
	if err != nil {
		c.JSON(reportStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": added})
}

func (a *app) deactivateReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found."})
		return
	}

	if err := a.reports.Deactivate(c.Request.Context(), reportUser(c), id); err != nil {
		c.JSON(reportStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// reportUser identifies the caller by owner cookie. Groups come from the
// X-Groups header, standing in for a real user directory.
func reportUser(c *gin.Context) tablenav.User {
	user := tablenav.User{ID: navhttp.OwnerID(c.Request)}
	for _, group := range strings.Split(c.GetHeader("X-Groups"), ",") {
		if group = strings.TrimSpace(group); group != "" {
			user.Groups = append(user.Groups, group)
		}
	}
	return user
}

func reportStatus(err error) int {
	switch {
	case errors.Is(err, tablenav.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, tablenav.ErrReportForbidden):
		return http.StatusForbidden
	case errors.Is(err, tablenav.ErrInvalidReport), errors.Is(err, tablenav.ErrOwnerRequired):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func productURL(id string) string {
	return "/products/" + id
}

func linkOrNil(ok bool, id, token string) any {
	if !ok {
		return nil
	}
	return navhttp.WithToken(productURL(id), token)
}

// product is a demo record.
type product struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// catalog is an in-memory product table.
type catalog struct {
	mu    sync.RWMutex
	items map[int]*product
}

func newCatalog() *catalog {
	c := &catalog{items: make(map[int]*product)}
	for i := 1; i <= 1200; i++ {
		c.items[i] = &product{
			ID:    i,
			Name:  fmt.Sprintf("Product %04d", (i*7919)%1200),
			Price: float64((i*31)%500) + 0.99,
		}
	}
	return c
}

func (c *catalog) get(id string) (product, bool) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return product{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[n]
	if !ok {
		return product{}, false
	}
	return *p, true
}

func (c *catalog) rename(id, name string) bool {
	n, err := strconv.Atoi(id)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[n]
	if !ok {
		return false
	}
	if name != "" {
		p.Name = name
	}
	return true
}

func (c *catalog) delete(ids []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		if _, ok := c.items[n]; ok {
			delete(c.items, n)
			deleted++
		}
	}
	return deleted
}

// filter returns products matching the search term and price bounds,
// ordered by sort ("name", "-name", "price", "-price"), with ID as tie
// breaker. Unparsable bounds are ignored.
func (c *catalog) filter(q, sort, minPrice, maxPrice string) []product {
	lo, loErr := strconv.ParseFloat(minPrice, 64)
	hi, hiErr := strconv.ParseFloat(maxPrice, 64)
	q = strings.ToLower(q)

	c.mu.RLock()
	rows := make([]product, 0, len(c.items))
	for _, p := range c.items {
		switch {
		case q != "" && !strings.Contains(strings.ToLower(p.Name), q):
		case loErr == nil && p.Price < lo:
		case hiErr == nil && p.Price > hi:
		default:
			rows = append(rows, *p)
		}
	}
	c.mu.RUnlock()

	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")
	slices.SortFunc(rows, func(a, b product) int {
		var order int
		switch field {
		case "price":
			order = cmp.Compare(a.Price, b.Price)
		default:
			order = strings.Compare(a.Name, b.Name)
		}
		if order == 0 {
			order = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			order = -order
		}
		return order
	})
	return rows
}
