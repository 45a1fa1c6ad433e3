package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/deviceclinic/bookingbackend/lib/myhttpclient"
	"github.com/deviceclinic/bookingbackend/lib/mypublisher"
	"github.com/deviceclinic/bookingbackend/lib/mypubsub"
	"github.com/deviceclinic/bookingbackend/lib/myqueue"
	"github.com/deviceclinic/bookingbackend/lib/mysession"
	"github.com/deviceclinic/bookingbackend/lib/mystore"
	"github.com/deviceclinic/bookingbackend/lib/mytime"
	"github.com/deviceclinic/bookingbackend/lib/myuuid"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
	"github.com/deviceclinic/bookingbackend/services/bookingevents"
	"github.com/deviceclinic/bookingbackend/services/checkout"
	"github.com/deviceclinic/bookingbackend/services/orderapi"
	"github.com/deviceclinic/bookingbackend/services/pricing"
)

func main() {
	c := context.Background()

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task queue: %s", err)
	}
	defer queueCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	err = publisher.CreateTopic(c, bookingevents.TopicName)
	if err != nil {
		log.Fatalf("Error creating topic %s: %s", bookingevents.TopicName, err)
	}

	checkoutStore, checkoutStoreCleanup, err := mystore.New[checkout.CheckoutContext](c)
	if err != nil {
		log.Fatalf("Error creating checkout store: %s", err)
	}
	defer checkoutStoreCleanup()

	session, sessionCleanup, err := mysession.New(c)
	if err != nil {
		log.Fatalf("Error creating session store: %s", err)
	}
	defer sessionCleanup()

	backendBaseURL := getenvWithDefault("BACKEND_API_BASE_URL", "http://localhost:8000/api")
	httpClient := myhttpclient.New()
	orderClient := orderapi.NewClient(backendBaseURL, httpClient)
	pricer := pricing.NewService(pricing.NewCalculator(backendBaseURL, httpClient))

	provider := checkout.NewPaymentProvider(os.Getenv("STRIPE_API_KEY"))
	codec := bookingapi.NewCodec([]byte(getenvWithDefault("SESSION_SIGNING_KEY", "dev-only-signing-key")))

	checkoutService := checkout.NewWebService(nower, uuider, checkoutStore, session, codec,
		pricer, orderClient, provider, publisher)
	err = checkoutService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout endpoints: %s", err)
	}

	startWebServerBlocking(router)
}

func getenvWithDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
