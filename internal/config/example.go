package config

import "os"

// ExamplePlan is a complete starter plan: a household working toward a
// retirement at 62, with a mortgage, a brokerage, an IRA with required
// distributions, and a Roth. It parses cleanly, so it doubles as living
// documentation of the file format.
const ExamplePlan = `# Example financial plan. Dates are YYYY-MM-DD, money is in plan currency.
plan:
  start_date: 2026-01-01
  duration_years: 30
  birth_date: 1970-04-15

simulation:
  iterations: 1000
  seed: 42

return_profiles:
  - id: cash-yield
    name: High yield savings
    kind: fixed
    rate: 0.04
  - id: us-stocks
    name: US total market
    kind: normal
    mean: 0.07
    std_dev: 0.15
  - id: bonds
    name: Aggregate bonds
    kind: normal
    mean: 0.03
    std_dev: 0.05
  - id: mortgage-rate
    name: Mortgage interest
    kind: fixed
    rate: 0.055

inflation:
  kind: fixed
  rate: 0.025

assets:
  - id: total-market
    name: Total market index
    initial_price: 120.0
    profile: us-stocks
  - id: bond-fund
    name: Bond index
    initial_price: 80.0
    profile: bonds

accounts:
  - id: checking
    name: Checking
    tax_status: taxable
    asset_class: cash
    cash_balance: 25000
    return_profile: cash-yield
  - id: brokerage
    name: Brokerage
    tax_status: taxable
    asset_class: investable
    lot_method: highest_cost
    cash_balance: 5000
    lots:
      - asset: total-market
        purchase_date: 2018-06-01
        units: 400
        cost_basis: 30000
  - id: ira
    name: Traditional IRA
    tax_status: tax_deferred
    asset_class: investable
    contribution_limit:
      amount: 7000
      period: yearly
    lots:
      - asset: total-market
        purchase_date: 2015-01-15
        units: 900
        cost_basis: 60000
      - asset: bond-fund
        purchase_date: 2020-03-01
        units: 500
        cost_basis: 35000
  - id: roth
    name: Roth IRA
    tax_status: tax_free
    asset_class: investable
    lots:
      - asset: total-market
        purchase_date: 2019-09-01
        units: 250
        cost_basis: 20000
  - id: mortgage
    name: Mortgage
    tax_status: illiquid
    asset_class: liability
    cash_balance: 180000
    return_profile: mortgage-rate

taxes:
  federal_brackets:
    - { threshold: 0, rate: 0.10 }
    - { threshold: 23200, rate: 0.12 }
    - { threshold: 94300, rate: 0.22 }
    - { threshold: 201050, rate: 0.24 }
  state_rate: 0.05
  capital_gains_rate: 0.15
  early_withdrawal_penalty_rate: 0.10

events:
  # Monthly salary until retirement, taxed as ordinary income on receipt.
  - id: salary
    name: Salary
    trigger:
      type: repeating
      interval: { months: 1 }
      end: { type: age, years: 62 }
    effects:
      - type: income
        account: checking
        amount: { type: fixed, value: 9500 }

  # Household spending while working, growing with the price level. After
  # retirement the withdrawal event below covers spending instead.
  - id: living-expenses
    trigger:
      type: repeating
      interval: { months: 1 }
      end: { type: age, years: 62 }
    effects:
      - type: expense
        account: checking
        amount: { type: fixed, value: 5200 }
        adjust_for_inflation: true

  # Mortgage payment, capped at the remaining principal so the final
  # payment does not overshoot. Stops once the balance hits zero.
  - id: mortgage-payment
    trigger:
      type: repeating
      interval: { months: 1 }
      end:
        type: account_balance
        account: mortgage
        comparison: lte
        threshold: 0
    effects:
      - type: transfer
        from: { account: checking }
        to: { account: mortgage }
        amount:
          type: min
          a: { type: fixed, value: 1400 }
          b: { type: zero_target_balance }

  # Annual IRA contribution while working. The account's yearly
  # contribution limit clips anything beyond it.
  - id: ira-contribution
    trigger:
      type: repeating
      interval: { years: 1 }
      end: { type: age, years: 62 }
    effects:
      - type: transfer
        from: { account: checking }
        to: { account: ira }
        amount: { type: fixed, value: 7000 }

  # Quarterly: skim checking above a cash floor into the brokerage and
  # put the proceeds to work.
  - id: invest-surplus
    trigger:
      type: repeating
      interval: { months: 3 }
      end: { type: age, years: 62 }
    effects:
      - type: transfer
        from: { account: checking }
        to: { account: brokerage }
        amount:
          type: sub
          a: { type: account_cash, account: checking }
          b: { type: fixed, value: 30000 }
      - type: purchase
        account: brokerage
        asset: total-market
        amount: { type: account_cash, account: brokerage }

  # Retirement spending, drawn across accounts in tax-efficient order.
  - id: retirement-spending
    trigger:
      type: repeating
      interval: { months: 1 }
      start: { type: age, years: 62 }
    effects:
      - type: withdraw
        strategy: tax_efficient_early
        amount: { type: fixed, value: 6500 }

  # Required minimum distributions from the IRA starting at 73.
  - id: rmd-setup
    once: true
    trigger: { type: age, years: 73 }
    effects:
      - type: create_rmd
        account: ira
  - id: rmd-run
    trigger:
      type: repeating
      interval: { years: 1 }
      start: { type: age, years: 73 }
    effects:
      - type: apply_rmd
`

// WriteExamplePlan writes the starter plan to filename
func WriteExamplePlan(filename string) error {
	return os.WriteFile(filename, []byte(ExamplePlan), 0o644)
}
