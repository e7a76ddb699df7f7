package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProgram = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

type fakeRPC struct {
	statuses    map[solana.Signature]*rpc.SignatureStatusesResult
	accounts    map[solana.PublicKey]bool
	txs         map[solana.Signature]*rpc.GetTransactionResult
	blockhash   solana.Hash
	statusCalls int
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		statuses:  map[solana.Signature]*rpc.SignatureStatusesResult{},
		accounts:  map[solana.PublicKey]bool{},
		txs:       map[solana.Signature]*rpc.GetTransactionResult{},
		blockhash: solana.HashFromBytes(make([]byte, 32)),
	}
}

func (f *fakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.statusCalls++
	out := &rpc.GetSignatureStatusesResult{}
	for _, s := range sigs {
		out.Value = append(out.Value, f.statuses[s])
	}
	return out, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash}}, nil
}

func (f *fakeRPC) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if !f.accounts[account] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{}, nil
}

func (f *fakeRPC) GetTransaction(_ context.Context, sig solana.Signature, _ *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	tx, ok := f.txs[sig]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return tx, nil
}

func newTestClient(t *testing.T) (*Client, *fakeRPC) {
	t.Helper()
	f := newFakeRPC()
	c, err := NewClient(f, testProgram)
	require.NoError(t, err)
	return c, f
}

func randomSignature() solana.Signature {
	var s solana.Signature
	for i := 0; i < len(s); i += 16 {
		u := uuid.New()
		copy(s[i:], u[:])
	}
	return s
}

func TestDiscriminatorMatchesAnchor(t *testing.T) {
	// sha256("global:initialize")[:8]
	assert.Equal(t, [8]byte{175, 175, 109, 31, 13, 152, 155, 237}, discriminator("initialize"))
}

func TestEscrowAddressDeterministic(t *testing.T) {
	pid := solana.MustPublicKeyFromBase58(testProgram)
	gigA, gigB := uuid.New(), uuid.New()

	a1, err := EscrowAddress(pid, gigA)
	require.NoError(t, err)
	a2, err := EscrowAddress(pid, gigA)
	require.NoError(t, err)
	b, err := EscrowAddress(pid, gigB)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)

	expected, _, err := solana.FindProgramAddress([][]byte{[]byte("escrow"), gigA[:]}, pid)
	require.NoError(t, err)
	assert.Equal(t, expected, a1)
}

func TestSignatureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		in   *rpc.SignatureStatusesResult
		want SignatureStatus
	}{
		{"unknown", nil, StatusNotFound},
		{"processed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusProcessed}, StatusNotFound},
		{"confirmed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}, StatusConfirmed},
		{"finalized", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized}, StatusFinalized},
		{"failed", &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}}, StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapStatus(tt.in))
		})
	}
}

func TestSatisfiesDepth(t *testing.T) {
	assert.True(t, StatusConfirmed.Satisfies(DepthConfirmed))
	assert.False(t, StatusConfirmed.Satisfies(DepthFinalized))
	assert.True(t, StatusFinalized.Satisfies(DepthFinalized))
	assert.False(t, StatusNotFound.Satisfies(DepthConfirmed))
	assert.False(t, StatusFailed.Satisfies(DepthConfirmed))
	assert.Equal(t, DepthFinalized, DepthForNetwork(true))
	assert.Equal(t, DepthConfirmed, DepthForNetwork(false))
}

func TestClient_SignatureStatus(t *testing.T) {
	c, f := newTestClient(t)
	sig := randomSignature()
	f.statuses[sig] = &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed}

	st, err := c.SignatureStatus(context.Background(), sig.String())
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	st, err = c.SignatureStatus(context.Background(), randomSignature().String())
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, st)

	_, err = c.SignatureStatus(context.Background(), "not-base58-!!")
	assert.True(t, apperror.IsValidation(err))
}

func TestClient_BuildUnsignedPrependsInitUser(t *testing.T) {
	c, f := newTestClient(t)
	payer := solana.NewWallet().PublicKey()
	gigID := uuid.New()

	req := BuildRequest{
		Action:         entity.ActionPublish,
		GigID:          gigID,
		Payer:          payer.String(),
		PosterWallet:   payer.String(),
		AmountLamports: 5_000_000,
		FeeLamports:    125_000,
	}

	out, err := c.BuildUnsigned(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, out.Instructions, 2)
	assert.True(t, out.SetupIncluded)
	assert.Equal(t, payer.String(), out.FeePayer)

	initData, err := base64.StdEncoding.DecodeString(out.Instructions[0].Data)
	require.NoError(t, err)
	d := discriminator(ixInitUser)
	assert.Equal(t, d[:], initData)

	escrow, err := EscrowAddress(c.programID, gigID)
	require.NoError(t, err)
	assert.Equal(t, escrow.String(), out.EscrowAddress)
	assert.Equal(t, escrow.String(), out.Instructions[1].Accounts[0].Pubkey)

	raw, err := base64.StdEncoding.DecodeString(out.Transaction)
	require.NoError(t, err)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	assert.True(t, tx.Message.AccountKeys[0].Equals(payer), "плательщик комиссии первым")

	// Учётная запись уже есть: только основная инструкция.
	userAcc, err := UserAccountAddress(c.programID, payer)
	require.NoError(t, err)
	f.accounts[userAcc] = true

	out, err = c.BuildUnsigned(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, out.Instructions, 1)
	assert.False(t, out.SetupIncluded)
}

func TestClient_BuildUnsignedRejectsBadWallet(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.BuildUnsigned(context.Background(), BuildRequest{
		Action: entity.ActionAccept,
		GigID:  uuid.New(),
		Payer:  "nope",
	})
	assert.True(t, apperror.IsValidation(err))
}

// landTx кладёт собранную транзакцию в фейковый узел как подтверждённую.
func landTx(t *testing.T, f *fakeRPC, b64 string) solana.Signature {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"slot":        1,
		"transaction": []string{b64, "base64"},
		"meta":        map[string]interface{}{"err": nil},
	})
	require.NoError(t, err)
	var res rpc.GetTransactionResult
	require.NoError(t, json.Unmarshal(payload, &res))

	sig := randomSignature()
	f.txs[sig] = &res
	return sig
}

func TestClient_VerifyAction(t *testing.T) {
	ctx := context.Background()
	c, f := newTestClient(t)
	poster := solana.NewWallet().PublicKey()
	gigID := uuid.New()
	escrow, err := EscrowAddress(c.programID, gigID)
	require.NoError(t, err)

	built, err := c.BuildUnsigned(ctx, BuildRequest{
		Action:         entity.ActionPublish,
		GigID:          gigID,
		Payer:          poster.String(),
		PosterWallet:   poster.String(),
		AmountLamports: 5_000_000,
		FeeLamports:    125_000,
	})
	require.NoError(t, err)
	require.True(t, built.SetupIncluded)
	sig := landTx(t, f, built.Transaction)

	req := VerifyRequest{Action: entity.ActionPublish, GigID: gigID, EscrowAddress: escrow.String(), Signer: poster.String()}
	got, err := c.VerifyAction(ctx, sig.String(), req)
	require.NoError(t, err)
	assert.Equal(t, &VerifiedAction{Instruction: ixCreateEscrow, Amount: 5_000_000, Fee: 125_000}, got)

	t.Run("другая операция", func(t *testing.T) {
		wrong := req
		wrong.Action = entity.ActionCancel
		_, err := c.VerifyAction(ctx, sig.String(), wrong)
		assert.True(t, apperror.IsValidation(err), "got %v", err)
	})

	t.Run("чужой подписант", func(t *testing.T) {
		wrong := req
		wrong.Signer = solana.NewWallet().PublicKey().String()
		_, err := c.VerifyAction(ctx, sig.String(), wrong)
		assert.True(t, apperror.IsValidation(err), "got %v", err)
	})

	t.Run("эскроу другого задания", func(t *testing.T) {
		otherID := uuid.New()
		other, err := EscrowAddress(c.programID, otherID)
		require.NoError(t, err)
		wrong := req
		wrong.GigID, wrong.EscrowAddress = otherID, other.String()
		_, err = c.VerifyAction(ctx, sig.String(), wrong)
		assert.True(t, apperror.IsValidation(err), "got %v", err)
	})

	t.Run("не найдена", func(t *testing.T) {
		_, err := c.VerifyAction(ctx, randomSignature().String(), req)
		assert.ErrorIs(t, err, apperror.ErrChainUnconfirmed)
	})
}

func TestClient_VerifyActionAccept(t *testing.T) {
	ctx := context.Background()
	c, f := newTestClient(t)
	worker := solana.NewWallet().PublicKey()
	poster := solana.NewWallet().PublicKey()
	gigID := uuid.New()
	escrow, err := EscrowAddress(c.programID, gigID)
	require.NoError(t, err)

	built, err := c.BuildUnsigned(ctx, BuildRequest{
		Action:       entity.ActionAccept,
		GigID:        gigID,
		Payer:        worker.String(),
		PosterWallet: poster.String(),
		WorkerWallet: worker.String(),
	})
	require.NoError(t, err)
	sig := landTx(t, f, built.Transaction)

	got, err := c.VerifyAction(ctx, sig.String(), VerifyRequest{
		Action: entity.ActionAccept, GigID: gigID, EscrowAddress: escrow.String(), Signer: worker.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, ixAcceptGig, got.Instruction)
	assert.Zero(t, got.Amount)

	// заказчик не подписывал эту транзакцию
	_, err = c.VerifyAction(ctx, sig.String(), VerifyRequest{
		Action: entity.ActionAccept, GigID: gigID, EscrowAddress: escrow.String(), Signer: poster.String(),
	})
	assert.True(t, apperror.IsValidation(err))
}
