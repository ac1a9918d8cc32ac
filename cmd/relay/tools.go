package main

import (
	"context"
	"fmt"
	"time"

	"github.com/relay-agents/relay/pkg/tools"
)

// Built-in demo tools. Simulated implementations; real deployments
// register their own tools against the registry.

type weatherArgs struct {
	Location string `json:"location" jsonschema:"required,description=City and country such as 'London UK'"`
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as 'UTC' or 'America/New_York',default=UTC"`
}

type tripDistanceArgs struct {
	Origin      string `json:"origin" jsonschema:"required,description=The starting city"`
	Destination string `json:"destination" jsonschema:"required,description=The destination city"`
}

type orderArgs struct {
	OrderNumber string `json:"order_number" jsonschema:"required,description=Order number"`
}

var tripDistancesKm = map[[2]string]int{
	{"Paris", "London"}:         344,
	{"New York", "Los Angeles"}: 3944,
	{"Tokyo", "Osaka"}:          515,
	{"Berlin", "Munich"}:        584,
}

func registerBuiltinTools(registry *tools.Registry) {
	registry.MustRegister(
		tools.MustFunctionTool("get_weather",
			"Get the current weather for a given location.",
			func(_ context.Context, args weatherArgs) (any, error) {
				return fmt.Sprintf("The weather in %s is sunny with a temperature of 22°C.", args.Location), nil
			}),

		tools.MustFunctionTool("get_current_time",
			"Get the current time in a specific timezone.",
			func(_ context.Context, args currentTimeArgs) (any, error) {
				name := args.Timezone
				if name == "" {
					name = "UTC"
				}
				loc, err := time.LoadLocation(name)
				if err != nil {
					return nil, fmt.Errorf("unknown timezone %q", name)
				}
				return fmt.Sprintf("The current time in %s is %s.", name, time.Now().In(loc).Format("15:04:05")), nil
			}),

		tools.MustFunctionTool("calculate_trip_distance",
			"Calculate the distance between two cities.",
			func(_ context.Context, args tripDistanceArgs) (any, error) {
				if km, ok := tripDistancesKm[[2]string{args.Origin, args.Destination}]; ok {
					return fmt.Sprintf("The distance from %s to %s is %d km.", args.Origin, args.Destination, km), nil
				}
				if km, ok := tripDistancesKm[[2]string{args.Destination, args.Origin}]; ok {
					return fmt.Sprintf("The distance from %s to %s is %d km.", args.Origin, args.Destination, km), nil
				}
				return fmt.Sprintf("The distance from %s to %s is approximately 500 km.", args.Origin, args.Destination), nil
			}),

		tools.MustFunctionTool("process_refund",
			"Process a refund for a given order number.",
			func(_ context.Context, args orderArgs) (any, error) {
				return fmt.Sprintf("Refund processed successfully for order %s.", args.OrderNumber), nil
			}),

		tools.MustFunctionTool("check_order_status",
			"Check the status of a given order number.",
			func(_ context.Context, args orderArgs) (any, error) {
				return fmt.Sprintf("Order %s is currently being processed and will ship in 2 business days.", args.OrderNumber), nil
			}),

		tools.MustFunctionTool("process_return",
			"Process a return for a given order number.",
			func(_ context.Context, args orderArgs) (any, error) {
				return fmt.Sprintf("Return initiated for order %s. A shipping label has been emailed.", args.OrderNumber), nil
			}),
	)
}
