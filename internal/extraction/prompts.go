package extraction

// statementPrompt is the fixed instruction attached to every extraction
// call. The sign convention is normalized here: the model emits negative
// amounts for money leaving the account, so downstream code never has to
// re-interpret sign by statement kind.
const statementPrompt = `You are a financial statement parser for bank and credit card statements.

Task:
- Parse ALL transactions in the attached statement document.
- Output STRICT JSON only (no comments, no trailing commas, no extra text).
- Output exactly ONE JSON object.

The object must have this shape:
{
  "summary": {
    "account_name": string or null,
    "statement_type": "bank" or "credit_card",
    "currency": string (ISO 4217, e.g. "USD"),
    "total_bill_amount": number or null (credit card statements only)
  },
  "transactions": [
    {
      "date": string, ISO format "YYYY-MM-DD",
      "description": string,
      "amount": number (positive for money IN, negative for money OUT),
      "category": string (e.g. "Groceries", "Transport", "Salary"),
      "balance": number or null (running balance after this transaction)
    }
  ]
}

Rules:
- If the statement has separate "paid out" / "paid in" columns, convert to a single signed "amount".
- If the running balance is missing, set "balance" to null.
- If the account name cannot be determined, set it to null.
- Classify each transaction into a short, sensible spending category.

Return ONLY valid raw JSON.
Do NOT wrap the response in code fences.
Do NOT use ` + "```json" + ` or any Markdown.
Output must begin with "{" and end with "}".
`

// insightsPrompt is the fixed instruction for insights generation. The
// transaction list is appended as JSON after this text.
const insightsPrompt = `You are a personal finance analyst. Analyze the transaction list below and produce spending insights.

Output STRICT JSON only: exactly ONE JSON object with this shape:
{
  "topCategories": [
    {"category": string, "amount": number, "percentage": number}
  ],
  "monthlySummary": {
    "totalIncome": number,
    "totalExpenses": number,
    "netCashFlow": number
  },
  "unusualActivity": [string],
  "spendingTrends": string,
  "recommendations": [string]
}

Rules:
- "topCategories" lists the top 3-5 spending categories by absolute amount, with each percentage relative to total expenses.
- "totalExpenses" is the absolute sum of negative amounts; "totalIncome" the sum of positive amounts.
- "unusualActivity" lists transactions that look out of pattern (unusually large, duplicated, unfamiliar merchants). Empty list if nothing stands out.
- "spendingTrends" is a short free-text narrative of how spending is trending.
- "recommendations" contains 2-3 actionable suggestions.

Return ONLY valid raw JSON, no code fences, no Markdown.

Transactions:
`
