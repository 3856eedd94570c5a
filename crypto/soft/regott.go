////////////////////////////////////////////////////////////////////////////////
// Copyright © 2021 MFactor Tech SEZC                                         //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package soft

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gitlab.com/elixxir/ekv"
)

// In-flight registration one-time tokens survive process restarts here;
// the external verification step they wait on can take arbitrarily long.

func (e *Engine) SaveRegOTT(mpinID, regOTT, accessCode string) error {
	records, err := e.loadRegOTTs()
	if err != nil {
		return err
	}
	records[mpinID] = regOTTRecord{RegOTT: regOTT, AccessCode: accessCode}
	return e.saveRegOTTs(records)
}

func (e *Engine) LoadRegOTT(mpinID string) (string, string, error) {
	records, err := e.loadRegOTTs()
	if err != nil {
		return "", "", err
	}
	rec, ok := records[mpinID]
	if !ok {
		return "", "", nil
	}
	return rec.RegOTT, rec.AccessCode, nil
}

func (e *Engine) DeleteRegOTT(mpinID string) error {
	records, err := e.loadRegOTTs()
	if err != nil {
		return err
	}
	if _, ok := records[mpinID]; !ok {
		return nil
	}
	delete(records, mpinID)
	return e.saveRegOTTs(records)
}

func (e *Engine) loadRegOTTs() (map[string]regOTTRecord, error) {
	records := map[string]regOTTRecord{}
	blob := &rawBlob{}
	if err := e.kv.Get(regOTTsStorageKey, blob); err != nil {
		if !ekv.Exists(err) {
			return records, nil
		}
		return nil, errors.WithMessage(err, "failed to load regOTT records")
	}
	if err := json.Unmarshal(blob.data, &records); err != nil {
		return nil, errors.Wrap(err, "regOTT records are corrupt")
	}
	return records, nil
}

func (e *Engine) saveRegOTTs(records map[string]regOTTRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return errors.Wrap(err, "failed to marshal regOTT records")
	}
	if err = e.kv.Set(regOTTsStorageKey, &rawBlob{data: data}); err != nil {
		return errors.WithMessage(err, "failed to store regOTT records")
	}
	return nil
}
