package main

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/w1xm/rccar_interface/internal/basicauth"
	"go.uber.org/zap"
)

type Config struct {
	InfluxServer string `env:"INFLUX_SERVER" envDefault:"http://localhost:9999"`
	InfluxToken  string `env:"INFLUX_TOKEN"`
	InfluxOrg    string `env:"INFLUX_ORG" envDefault:"car"`
	InfluxBucket string `env:"INFLUX_BUCKET" envDefault:"car.raw"`
	// CarAddress is the status websocket of a running car server.
	CarAddress string `env:"CAR_ADDRESS" envDefault:"ws://localhost:8080/api/ws"`
	Password   string `env:"CAR_PASSWORD"`
}

func main() {
	l, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	logger := l.Sugar()
	defer logger.Sync()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatalw("reading environment", "error", err)
	}

	client := influxdb2.NewClient(cfg.InfluxServer, cfg.InfluxToken)
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi(cfg.InfluxOrg, cfg.InfluxBucket)
	defer writeApi.Close()
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			logger.Warnw("write error", "error", err)
		}
	}()
	for {
		if err := logData(cfg, writeApi); err != nil {
			logger.Warnw("logging car status", "address", cfg.CarAddress, "error", err)
		}
		time.Sleep(1 * time.Second)
	}
}

// flattenStatus turns nested JSON into dotted field names.
func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	case nil:
	default:
		if prefix != "" {
			fields[prefix[1:]] = status
		}
	}
}

func logData(cfg Config, writeApi api.WriteApi) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(cfg.CarAddress, basicauth.Header(cfg.Password))
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		fields := make(map[string]interface{})
		flattenStatus(fields, status, "")

		p := influxdb2.NewPoint("car.status",
			nil,
			fields,
			time.Now(),
		)
		// write asynchronously
		writeApi.WritePoint(p)
	}
}
