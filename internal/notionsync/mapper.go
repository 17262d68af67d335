package notionsync

import (
	"time"

	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/jomei/notionapi"
)

// TransactionToNotionProperties converts a stored TransactionRow to Notion
// properties. The Notion transaction database schema is:
// Description (title), Date, Amount, Type, Currency, Category, Balance,
// Statement ID, Transaction ID, Imported At.
func TransactionToNotionProperties(tx *store.TransactionRow) notionapi.Properties {
	props := notionapi.Properties{
		"Description": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Description,
					},
				},
			},
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(time.Date(
						tx.TransactionDate.Year,
						tx.TransactionDate.Month,
						tx.TransactionDate.Day,
						0, 0, 0, 0, time.UTC,
					))
					return &d
				}(),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount,
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Type,
			},
		},
		"Transaction ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.TransactionID,
					},
				},
			},
		},
	}

	if tx.Currency.Valid && tx.Currency.StringVal != "" {
		props["Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Currency.StringVal,
			},
		}
	}

	if tx.Category.Valid && tx.Category.StringVal != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category.StringVal,
			},
		}
	}

	if tx.Balance.Valid {
		props["Balance"] = notionapi.NumberProperty{
			Number: tx.Balance.Float64,
		}
	}

	if tx.StatementID != "" {
		props["Statement ID"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.StatementID,
					},
				},
			},
		}
	}

	props["Imported At"] = notionapi.DateProperty{
		Date: &notionapi.DateObject{
			Start: (*notionapi.Date)(&tx.CreatedTS),
		},
	}

	return props
}
