package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dkrasnov/pennyworth/internal/domain"
)

// TransactionToNotionProperties converts a Transaction to Notion page properties.
// The "Transaction ID" title carries the UUID so the sync can dedupe against
// pages that already exist in the database.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		"Transaction ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.ID.String(),
					},
				},
			},
		},
		"Type": notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(tx.Type),
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: tx.Amount.InexactFloat64(),
		},
		"Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(tx.OccurredAt)
					return &d
				}(),
			},
		},
		"Recurring": notionapi.CheckboxProperty{
			Checkbox: tx.IsRecurring,
		},
	}

	if tx.Description != "" {
		props["Description"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: tx.Description,
					},
				},
			},
		}
	}

	if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: tx.Category,
			},
		}
	}

	if tx.RecurringInterval != nil {
		props["Interval"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: string(*tx.RecurringInterval),
			},
		}
	}

	if tx.NextRecurringDate != nil {
		props["Next Occurrence"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(*tx.NextRecurringDate)
					return &d
				}(),
			},
		}
	}

	return props
}
