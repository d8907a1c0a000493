package receipt

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/fuel-receipts/internal/scanning"
)

var _ = Describe("BoltDB", func() {
	var (
		ctx    context.Context
		dbPath string
		db     *BoltDB
	)

	newTransaction := func(id string, status Status, created time.Time) *Transaction {
		return &Transaction{
			ID:            id,
			VehicleID:     "KDA 123A",
			Filename:      id + "_receipt.jpg",
			ContentType:   "image/jpeg",
			ExtractedData: scanning.Fields{Amount: ptr(3700.25), StationName: ptr("Shell")},
			Confidence:    88,
			Status:        status,
			Issues:        []string{},
			CreatedAt:     created,
			UpdatedAt:     created,
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveTransaction", func() {
		var (
			t   *Transaction
			err error
		)

		BeforeEach(func() {
			t = newTransaction("test-id", StatusCompleted, time.Date(2024, 3, 15, 14, 40, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.SaveTransaction(ctx, t)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should round trip the extracted fields", func() {
			saved, getErr := db.GetTransaction(ctx, "test-id")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(saved.ExtractedData.Amount).To(HaveValue(Equal(3700.25)))
			Expect(saved.ExtractedData.StationName).To(HaveValue(Equal("Shell")))
			Expect(saved.ExtractedData.Date).To(BeNil())
			Expect(saved.Confidence).To(Equal(88))
		})

		When("the transaction already exists", func() {
			BeforeEach(func() {
				Expect(db.SaveTransaction(ctx, newTransaction("test-id", StatusManual, time.Now()))).To(Succeed())
			})

			It("should replace it", func() {
				saved, getErr := db.GetTransaction(ctx, "test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.Status).To(Equal(StatusCompleted))
			})
		})
	})

	Describe("GetTransaction", func() {
		When("the transaction does not exist", func() {
			It("returns a not found error", func() {
				_, err := db.GetTransaction(ctx, "nonexistent")
				Expect(err).To(MatchError(ErrNotFound))
				Expect(err.Error()).To(ContainSubstring("nonexistent"))
			})
		})
	})

	Describe("ListTransactions", func() {
		var (
			status       Status
			transactions []*Transaction
			err          error
		)

		BeforeEach(func() {
			status = ""
			base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveTransaction(ctx, newTransaction("oldest", StatusCompleted, base))).To(Succeed())
			Expect(db.SaveTransaction(ctx, newTransaction("newest", StatusManual, base.Add(2*time.Hour)))).To(Succeed())
			Expect(db.SaveTransaction(ctx, newTransaction("middle", StatusCompleted, base.Add(time.Hour)))).To(Succeed())
		})

		JustBeforeEach(func() {
			transactions, err = db.ListTransactions(ctx, status)
		})

		It("should return every transaction newest first", func() {
			Expect(err).NotTo(HaveOccurred())
			ids := make([]string, 0, len(transactions))
			for _, t := range transactions {
				ids = append(ids, t.ID)
			}
			Expect(ids).To(Equal([]string{"newest", "middle", "oldest"}))
		})

		When("filtering by status", func() {
			BeforeEach(func() {
				status = StatusManual
			})

			It("should only return matching transactions", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(transactions).To(HaveLen(1))
				Expect(transactions[0].ID).To(Equal("newest"))
			})
		})

		When("the database is empty", func() {
			BeforeEach(func() {
				for _, id := range []string{"oldest", "middle", "newest"} {
					Expect(db.DeleteTransaction(ctx, id)).To(Succeed())
				}
			})

			It("should return an empty list", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(transactions).To(BeEmpty())
			})
		})
	})

	Describe("DeleteTransaction", func() {
		BeforeEach(func() {
			Expect(db.SaveTransaction(ctx, newTransaction("test-id", StatusCompleted, time.Now()))).To(Succeed())
		})

		It("should remove the transaction", func() {
			Expect(db.DeleteTransaction(ctx, "test-id")).To(Succeed())
			_, err := db.GetTransaction(ctx, "test-id")
			Expect(err).To(MatchError(ErrNotFound))
		})

		When("the transaction does not exist", func() {
			It("returns a not found error", func() {
				Expect(db.DeleteTransaction(ctx, "nonexistent")).To(MatchError(ErrNotFound))
			})
		})
	})
})
