// Package models defines the core domain models for splitledger.
//
// # Models
//
//   - User: a person taking part in shared expenses, identified by a unique name
//   - Expense: a payment made by one user on behalf of an ordered list of participants
//   - Share: one participant's portion of an expense
//   - Balance: a single directional debt between two users
//
// # Design Principles
//
// 1. **Integer identity**: every persisted row carries the int64 id assigned by the store
// 2. **Fixed-point money**: amounts are decimal.Decimal, never float64
// 3. **Avoid circular references**: relationships use ids, names are denormalized for display
// 4. **Copies, not handles**: values returned from the ledger snapshot are copies;
//    mutating them never changes ledger state
package models
