package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dquispe/reparto-backend/api/controllers"
	webhookcontrollers "github.com/dquispe/reparto-backend/api/controllers/webhooks"
	"github.com/dquispe/reparto-backend/api/middleware"
	authsvc "github.com/dquispe/reparto-backend/internal/auth"
	catalogsvc "github.com/dquispe/reparto-backend/internal/catalog"
	checkoutsvc "github.com/dquispe/reparto-backend/internal/checkout"
	identitysvc "github.com/dquispe/reparto-backend/internal/identity"
	orderssvc "github.com/dquispe/reparto-backend/internal/orders"
	stripewebhook "github.com/dquispe/reparto-backend/internal/webhooks/stripe"
	"github.com/dquispe/reparto-backend/pkg/config"
	"github.com/dquispe/reparto-backend/pkg/db"
	"github.com/dquispe/reparto-backend/pkg/enums"
	"github.com/dquispe/reparto-backend/pkg/logger"
	"github.com/dquispe/reparto-backend/pkg/redis"
	"github.com/dquispe/reparto-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	authService authsvc.Service,
	identityService identitysvc.Service,
	catalogService catalogsvc.Service,
	checkoutService checkoutsvc.Service,
	ordersService orderssvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		0,
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/sign-in", controllers.SignIn(authService, logg))
		r.With(middleware.AuthRateLimit(signupPolicy, redisClient, logg)).Post("/sign-up", controllers.SignUpClient(identityService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleClient), logg))
			r.Get("/products", controllers.ListCatalog(catalogService, logg))
			r.Post("/checkout/sessions", controllers.CreateCheckoutSession(checkoutService, logg))
			r.Get("/orders", controllers.ClientListOrders(ordersService, logg))
			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", controllers.ClientGetProfile(identityService, logg))
				r.Patch("/", controllers.ClientUpdateProfile(identityService, logg))
			})
		})

		r.Route("/distributor", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleDistributor), logg))
			r.Get("/orders", controllers.DistributorListOrders(ordersService, logg))
			r.Post("/orders/{orderId}/deliver", controllers.DistributorDeliverOrder(ordersService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.AdminListProducts(catalogService, logg))
				r.Post("/", controllers.AdminCreateProduct(catalogService, logg))
				r.Get("/{productId}", controllers.GetProduct(catalogService, logg))
				r.Patch("/{productId}", controllers.AdminUpdateProduct(catalogService, logg))
				r.Delete("/{productId}", controllers.AdminToggleProduct(catalogService, logg))
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", controllers.AdminListUsers(identityService, logg))
				r.Post("/", controllers.AdminCreateEmployee(identityService, logg))
				r.Post("/distributors/import", controllers.AdminImportDistributors(identityService, logg))
				r.Get("/{userId}", controllers.AdminGetUser(identityService, logg))
				r.Patch("/{userId}", controllers.AdminUpdateClient(identityService, logg))
				r.Delete("/{userId}", controllers.AdminToggleUser(identityService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminListOrders(ordersService, logg))
				r.Get("/{orderId}", controllers.AdminGetOrder(ordersService, logg))
				r.Post("/{orderId}/assign/{distributorId}", controllers.AdminAssignOrder(ordersService, logg))
			})
		})
	})

	return r
}
