package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/customer-import-api/internal/config"
	"github.com/customer-import-api/internal/mocks"
	"github.com/customer-import-api/internal/models"
	"github.com/customer-import-api/internal/repository"
	"github.com/customer-import-api/internal/service"
	"github.com/rs/zerolog"
)

func benchServices() *service.Services {
	cfg := &config.Config{
		Import: config.ImportConfig{
			UserChunkSize:     50,
			UserConcurrency:   5,
			CustomerChunkSize: 10,
		},
	}
	repos := &repository.Repositories{Job: mocks.NewMockJobRepository()}
	users := mocks.NewMockRecordClient("wordpress")
	customers := mocks.NewMockRecordClient("woocommerce")
	return service.NewServices(repos, users, customers, cfg, zerolog.Nop())
}

func benchRows(n int) []models.ImportRow {
	rows := make([]models.ImportRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.ImportRow{
			Email:     fmt.Sprintf("bench%d@example.com", i),
			FirstName: "Bench",
			LastName:  fmt.Sprintf("User%d", i),
		})
	}
	return rows
}

func BenchmarkUpsertUsers(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("rows_%d", size), func(b *testing.B) {
			rows := benchRows(size)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				svc := benchServices()
				if _, err := svc.Upsert.UpsertUsers(context.Background(), rows, 0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkUpsertCustomers(b *testing.B) {
	rows := benchRows(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		svc := benchServices()
		if _, err := svc.Upsert.UpsertCustomers(context.Background(), rows, 0); err != nil {
			b.Fatal(err)
		}
	}
}
